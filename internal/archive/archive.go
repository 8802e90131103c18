/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/blnkfinance/vault/config"
)

// Uploader is the subset of *s3manager.Uploader used for statements.
type Uploader interface {
	UploadWithContext(ctx aws.Context, input *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// Archive stores exported statements in an S3 bucket.
type Archive struct {
	uploader Uploader
	bucket   string
}

func New(uploader Uploader, bucket string) *Archive {
	return &Archive{uploader: uploader, bucket: bucket}
}

// NewS3Archive builds an archive from config. A custom endpoint switches to
// path-style addressing for S3-compatible stores.
func NewS3Archive(conf config.ArchiveConfig) (*Archive, error) {
	awsConf := &aws.Config{Region: aws.String(conf.S3Region)}
	if conf.AwsAccessKeyId != "" {
		awsConf.Credentials = credentials.NewStaticCredentials(conf.AwsAccessKeyId, conf.AwsSecretAccessKey, "")
	}
	if conf.S3Endpoint != "" {
		awsConf.Endpoint = aws.String(conf.S3Endpoint)
		awsConf.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsConf)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return New(s3manager.NewUploader(sess), conf.S3BucketName), nil
}

// StatementKey is the object key of a statement export.
func StatementKey(ownerID, start, end string) string {
	return fmt.Sprintf("statements/%s/%s_%s.csv", ownerID, start, end)
}

func (a *Archive) Put(ctx context.Context, key string, body []byte) (string, error) {
	out, err := a.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return out.Location, nil
}
