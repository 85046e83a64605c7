package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	sc "github.com/dmitrijs2005/accountkeeper/internal/server/config"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *sc.Config {
	return &sc.Config{
		S3Region:       "us-east-1",
		S3RootUser:     "minioadmin",
		S3RootPassword: "minioadmin",
		S3BaseEndpoint: "http://127.0.0.1:9000",
		S3Bucket:       "avatars",
	}
}

func newProfileFixture(t *testing.T) (*ProfileService, *repomanager.MemoryRepositoryManager, string) {
	t.Helper()
	m := repomanager.NewMemoryRepositoryManager()
	ids := NewIdentityService(m, newTestIssuer(t), logging.Nop{})
	register(t, ids, "mia", "mia@example.com")

	i, err := m.Identities().GetByEmail(context.Background(), "mia@example.com")
	require.NoError(t, err)

	_, err = m.Profiles().CreateIfAbsent(context.Background(), &models.Profile{
		ID: i.ID, Username: "mia", DisplayName: "mia", Email: "mia@example.com", Role: common.DefaultRole,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	})
	require.NoError(t, err)

	return NewProfileService(m, testConfig(), logging.Nop{}), m, i.ID
}

func TestGetProfile(t *testing.T) {
	svc, _, id := newProfileFixture(t)

	p, err := svc.GetProfile(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "mia", p.Username)

	_, err = svc.GetProfile(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdateProfile(t *testing.T) {
	svc, _, id := newProfileFixture(t)
	ctx := context.Background()

	name, job := "Mia M.", "Engineer"
	pic := "avatars/" + id + "/abc"
	p, err := svc.UpdateProfile(ctx, id, id, UpdateProfileRequest{DisplayName: &name, Occupation: &job, ProfilePicturePath: &pic})
	require.NoError(t, err)
	assert.Equal(t, "Mia M.", p.DisplayName)
	require.NotNil(t, p.Occupation)
	assert.Equal(t, "Engineer", *p.Occupation)
	assert.Nil(t, p.Location)

	stored, _ := svc.GetProfile(ctx, id)
	assert.Equal(t, p.DisplayName, stored.DisplayName)
	assert.Equal(t, pic, *stored.ProfilePicturePath)
}

func TestUpdateProfile_Rejections(t *testing.T) {
	svc, _, id := newProfileFixture(t)
	ctx := context.Background()

	empty := ""
	_, err := svc.UpdateProfile(ctx, id, id, UpdateProfileRequest{DisplayName: &empty})
	assert.ErrorIs(t, err, common.ErrValidation)

	foreign := "avatars/someone-else/abc"
	_, err = svc.UpdateProfile(ctx, id, id, UpdateProfileRequest{ProfilePicturePath: &foreign})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.UpdateProfile(ctx, "", id, UpdateProfileRequest{})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = svc.UpdateProfile(ctx, "missing", "missing", UpdateProfileRequest{})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func stubAWS(t *testing.T) {
	t.Helper()
	origLoad, origNewS3, origNewPre, origPut := loadDefaultAWSConfig, newS3ClientFromConfig, newS3PresignClient, presignPutObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
		presignPutObject = origPut
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "us-east-1", lo.Region)
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		var opts s3.Options
		for _, fn := range optFns {
			fn(&opts)
		}
		require.NotNil(t, opts.BaseEndpoint)
		assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return &s3.PresignClient{}
	}
}

func TestPictureUploadURL(t *testing.T) {
	svc, _, id := newProfileFixture(t)
	stubAWS(t)

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		assert.Equal(t, "avatars", *in.Bucket)
		return &v4.PresignedHTTPRequest{URL: "http://s3/" + *in.Key, Method: http.MethodPut}, nil
	}

	up, err := svc.PictureUploadURL(context.Background(), id, id)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(up.Key, "avatars/"+id+"/"))
	assert.Equal(t, "http://s3/"+up.Key, up.UploadURL)
}

func TestPictureUploadURL_Errors(t *testing.T) {
	svc, m, id := newProfileFixture(t)
	stubAWS(t)

	presignPutObject = func(*s3.PresignClient, context.Context, *s3.PutObjectInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("presign-fail")
	}
	_, err := svc.PictureUploadURL(context.Background(), id, id)
	assert.ErrorIs(t, err, common.ErrDependency)

	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}
	_, err = svc.PictureUploadURL(context.Background(), id, id)
	assert.ErrorIs(t, err, common.ErrDependency)

	ids := NewIdentityService(m, newTestIssuer(t), logging.Nop{})
	register(t, ids, "ned", "ned@example.com")
	ned, _ := m.Identities().GetByEmail(context.Background(), "ned@example.com")
	_, err = svc.PictureUploadURL(context.Background(), ned.ID, id)
	assert.ErrorIs(t, err, common.ErrForbidden)
}
