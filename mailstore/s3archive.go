package mailstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/sievebox/sievecore/action"
	"github.com/sievebox/sievecore/env"
)

// S3Config configures S3Archive's backing bucket, mirroring the shape of
// the Lode S3 backend configuration (bucket/prefix/region/endpoint/path
// style, for S3-compatible providers like R2 or MinIO).
type S3Config struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	UsePathStyle bool
}

func (c S3Config) validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("mailstore: S3 bucket is required")
	}
	return nil
}

// S3Archive wraps a MailboxStore and mirrors every successful delivery to
// an S3 (or S3-compatible) bucket, keyed by mailbox/message ID. Archive
// failures never fail the delivery itself: a message that reached the
// primary store is considered delivered even if its archive copy did not
// land, so Deliver only logs the archive error via archiveErr (nil unless
// a caller wants it surfaced through host logging).
type S3Archive struct {
	Next   action.MailboxStore
	client *s3.Client
	cfg    S3Config

	archiveErr func(mailbox string, err error)
}

// NewS3Archive builds an archive decorator around next using the AWS SDK's
// default credential chain (env vars, shared config, IAM role).
func NewS3Archive(next action.MailboxStore, cfg S3Config) (*S3Archive, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	awsCfg, err := loadAWSConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("mailstore: load AWS config: %w", err)
	}
	var opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		opts = append(opts, func(o *s3.Options) { o.BaseEndpoint = &endpoint })
	}
	if cfg.UsePathStyle {
		opts = append(opts, func(o *s3.Options) { o.UsePathStyle = true })
	}
	return &S3Archive{
		Next:   next,
		client: s3.NewFromConfig(awsCfg, opts...),
		cfg:    cfg,
	}, nil
}

func loadAWSConfig(cfg S3Config) (aws.Config, error) {
	ctx := context.Background()
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

// OnArchiveError registers a callback invoked whenever mirroring a
// delivery to S3 fails. Optional; a nil callback silently drops the error.
func (a *S3Archive) OnArchiveError(fn func(mailbox string, err error)) {
	a.archiveErr = fn
}

func (a *S3Archive) OpenMailbox(name string, autocreate, autosubscribe bool) error {
	return a.Next.OpenMailbox(name, autocreate, autosubscribe)
}

func (a *S3Archive) key(mailbox string, msg *env.Message) string {
	safeBox := strings.ReplaceAll(mailbox, "/", "_")
	id := sanitizeID(msg.ID)
	if id == "" {
		id = fmt.Sprintf("t%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%smailbox=%s/%s.eml", a.cfg.Prefix, safeBox, id)
}

func (a *S3Archive) Deliver(mailbox string, msg *env.Message, flags, keywords []string) error {
	if err := a.Next.Deliver(mailbox, msg, flags, keywords); err != nil {
		return err
	}
	a.mirror(mailbox, msg)
	return nil
}

func (a *S3Archive) UpdateFlags(mailbox string, msg *env.Message, flags, keywords []string) error {
	return a.Next.UpdateFlags(mailbox, msg, flags, keywords)
}

func (a *S3Archive) mirror(mailbox string, msg *env.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(a.key(mailbox, msg)),
		Body:   strings.NewReader(string(msg.Raw)),
	})
	if err != nil && a.archiveErr != nil {
		a.archiveErr(mailbox, wrapErr("archive", mailbox, err))
	}
}

var _ action.MailboxStore = (*S3Archive)(nil)
var _ action.MailboxStore = (*FSStore)(nil)
