package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	sc "github.com/dmitrijs2005/accountkeeper/internal/server/config"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/repomanager"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
)

// PictureUploadExpiry is how long a presigned picture upload URL stays valid.
const PictureUploadExpiry = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

// UpdateProfileRequest carries the mutable profile fields. Nil fields are
// left unchanged.
type UpdateProfileRequest struct {
	DisplayName        *string `json:"displayName"`
	Location           *string `json:"location"`
	Occupation         *string `json:"occupation"`
	ProfilePicturePath *string `json:"profilePicturePath"`
}

func (r UpdateProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DisplayName, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&r.Location, validation.Length(0, 200)),
		validation.Field(&r.Occupation, validation.Length(0, 200)),
	)
}

// PictureUpload is a presigned PUT target for a profile picture.
type PictureUpload struct {
	Key       string `json:"key"`
	UploadURL string `json:"uploadUrl"`
}

// ProfileService serves the public profile projection and profile pictures
// kept in S3-compatible storage.
type ProfileService struct {
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	log         logging.Logger
	now         func() time.Time
}

func NewProfileService(m repomanager.RepositoryManager, cfg *sc.Config, log logging.Logger) *ProfileService {
	return &ProfileService{
		repomanager: m,
		config:      cfg,
		log:         log.With("module", "profile"),
		now:         time.Now,
	}
}

func (s *ProfileService) GetProfile(ctx context.Context, id string) (p *models.Profile, err error) {
	defer observe("get_profile", time.Now(), &err)

	p, err = s.repomanager.Profiles().Get(ctx, id)
	if err != nil {
		return nil, storeError("get profile", err)
	}
	return p, nil
}

// UpdateProfile changes the caller's own profile, or any profile for an
// admin. A picture path must be a key previously issued for this profile.
func (s *ProfileService) UpdateProfile(ctx context.Context, actorID, id string, req UpdateProfileRequest) (p *models.Profile, err error) {
	defer observe("update_profile", time.Now(), &err)

	if err := authorize(ctx, s.repomanager, actorID, id); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	if req.ProfilePicturePath != nil && !strings.HasPrefix(*req.ProfilePicturePath, pictureKeyPrefix(id)) {
		return nil, fmt.Errorf("%w: profilePicturePath: not issued for this profile", common.ErrValidation)
	}

	p, err = s.repomanager.Profiles().Get(ctx, id)
	if err != nil {
		return nil, storeError("update profile", err)
	}

	if req.DisplayName != nil {
		p.DisplayName = *req.DisplayName
	}
	if req.Location != nil {
		p.Location = req.Location
	}
	if req.Occupation != nil {
		p.Occupation = req.Occupation
	}
	if req.ProfilePicturePath != nil {
		p.ProfilePicturePath = req.ProfilePicturePath
	}
	p.UpdatedAt = s.now().UTC()

	if err := s.repomanager.Profiles().Update(ctx, p); err != nil {
		return nil, storeError("update profile", err)
	}
	return p, nil
}

// PictureUploadURL returns a presigned PUT URL and the storage key to pass
// back through UpdateProfile once the upload is done.
func (s *ProfileService) PictureUploadURL(ctx context.Context, actorID, id string) (u *PictureUpload, err error) {
	defer observe("picture_upload_url", time.Now(), &err)

	if err := authorize(ctx, s.repomanager, actorID, id); err != nil {
		return nil, err
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrDependency, err)
	}

	bucket := s.config.S3Bucket
	key := pictureKeyPrefix(id) + uuid.NewString()

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(PictureUploadExpiry))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrDependency, err)
	}

	return &PictureUpload{Key: key, UploadURL: req.URL}, nil
}

func pictureKeyPrefix(id string) string {
	return "avatars/" + id + "/"
}

func (s *ProfileService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}
