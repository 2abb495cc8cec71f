package operations

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	iamsvc "github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/pankaj-dahiya-devops/orgsweep/internal/engine"
	"github.com/pankaj-dahiya-devops/orgsweep/internal/models"
	awssession "github.com/pankaj-dahiya-devops/orgsweep/internal/providers/aws/session"
)

// iamUsersWithoutMFA returns console users (those with a login profile)
// that have no MFA device. API-only users are not reported.
func iamUsersWithoutMFA(f clientFactory) engine.Callback {
	return func(ctx context.Context, sess *awssession.Session, _, _ string, _ engine.Payload) ([]models.Record, error) {
		client := f(sess.Config).IAM
		p := iamsvc.NewListUsersPaginator(client, &iamsvc.ListUsersInput{})

		var records []models.Record
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("list IAM users: %w", err)
			}
			for _, u := range page.Users {
				name := aws.ToString(u.UserName)

				console, err := hasLoginProfile(ctx, client, name)
				if err != nil {
					return nil, err
				}
				if !console {
					continue
				}
				mfa, err := client.ListMFADevices(ctx, &iamsvc.ListMFADevicesInput{UserName: aws.String(name)})
				if err != nil {
					return nil, fmt.Errorf("list MFA devices for %s: %w", name, err)
				}
				if len(mfa.MFADevices) > 0 {
					continue
				}

				rec := models.Record{
					"UserName":   name,
					"Arn":        aws.ToString(u.Arn),
					"CreateDate": aws.ToTime(u.CreateDate),
				}
				if u.PasswordLastUsed != nil {
					rec["PasswordLastUsed"] = *u.PasswordLastUsed
				}
				records = append(records, rec)
			}
		}
		return records, nil
	}
}

// hasLoginProfile reports whether the user can sign in to the console.
// NoSuchEntity means no password; any other error is returned.
func hasLoginProfile(ctx context.Context, client iamAPIClient, userName string) (bool, error) {
	_, err := client.GetLoginProfile(ctx, &iamsvc.GetLoginProfileInput{UserName: aws.String(userName)})
	if err == nil {
		return true, nil
	}
	var notFound *iamtypes.NoSuchEntityException
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, fmt.Errorf("get login profile for %s: %w", userName, err)
}
