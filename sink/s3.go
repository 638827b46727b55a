// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sink

import (
	"bytes"
	"context"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"

	"github.com/stockparfait/ipca/db"
	"github.com/stockparfait/ipca/table"
)

// S3 uploads the dataset as a single object into an S3 bucket. Each load
// creates a new object named after its run ID.
type S3 struct {
	Bucket         string
	Region         string
	Endpoint       string
	Prefix         string
	ForcePathStyle bool
	Format         string // FormatCSV or FormatParquet
	Credentials    string // optional shared credentials file
}

var _ Sink = &S3{}

// S3Option configures the S3 sink.
type S3Option func(*S3)

// WithEndpoint sets a custom S3-compatible endpoint.
func WithEndpoint(endpoint string) S3Option {
	return func(s *S3) { s.Endpoint = endpoint }
}

// WithPrefix sets the key prefix of the uploaded objects.
func WithPrefix(prefix string) S3Option {
	return func(s *S3) { s.Prefix = prefix }
}

// WithForcePathStyle enables path-style bucket addressing.
func WithForcePathStyle(forcePathStyle bool) S3Option {
	return func(s *S3) { s.ForcePathStyle = forcePathStyle }
}

// WithFormat sets the object format. Empty format means FormatCSV.
func WithFormat(format string) S3Option {
	return func(s *S3) {
		if format != "" {
			s.Format = format
		}
	}
}

// WithCredentialsFile uses the default profile of the shared credentials file
// instead of the default credential chain.
func WithCredentialsFile(file string) S3Option {
	return func(s *S3) { s.Credentials = file }
}

// NewS3 creates an S3 sink.
func NewS3(bucket, region string, opts ...S3Option) *S3 {
	s := &S3{Bucket: bucket, Region: region, Format: FormatCSV}
	for _, o := range opts {
		o(s)
	}
	return s
}

// objectKey for the load run.
func (s *S3) objectKey(runID string) string {
	return path.Join(s.Prefix, "ipca_"+runID+"."+s.Format)
}

// encode the dataset in the sink's format.
func (s *S3) encode(schema db.Schema, ds *table.Dataset) ([]byte, error) {
	var buf bytes.Buffer
	switch s.Format {
	case FormatCSV:
		if err := ds.Table().WriteCSV(&buf, table.Params{}); err != nil {
			return nil, errors.Annotate(err, "failed to write CSV")
		}
	case FormatJSON:
		if err := ds.WriteJSON(&buf); err != nil {
			return nil, errors.Annotate(err, "failed to write JSON")
		}
	case FormatParquet:
		if err := writeParquet(&buf, schema, ds); err != nil {
			return nil, errors.Annotate(err, "failed to write parquet")
		}
	default:
		return nil, errors.Reason("unsupported format '%s'", s.Format)
	}
	return buf.Bytes(), nil
}

func (s *S3) uploader() (*s3manager.Uploader, error) {
	awsConfig := &aws.Config{
		Region:           aws.String(s.Region),
		S3ForcePathStyle: aws.Bool(s.ForcePathStyle),
	}
	if s.Endpoint != "" {
		awsConfig.Endpoint = aws.String(s.Endpoint)
	}
	if s.Credentials != "" {
		awsConfig.Credentials = credentials.NewSharedCredentials(s.Credentials, "default")
	}
	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, errors.Annotate(err, "failed to create AWS session")
	}
	return s3manager.NewUploader(sess), nil
}

// Load implements Sink.
func (s *S3) Load(ctx context.Context, schema db.Schema, ds *table.Dataset) error {
	runID, err := begin(ctx, KindS3, schema, ds)
	if err != nil {
		return err
	}
	body, err := s.encode(schema, ds)
	if err != nil {
		return err
	}
	u, err := s.uploader()
	if err != nil {
		return err
	}
	key := s.objectKey(runID)
	logging.Debugf(ctx, "uploading %d bytes to s3://%s/%s", len(body), s.Bucket, key)
	_, err = u.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return errors.Annotate(err, "failed to upload s3://%s/%s", s.Bucket, key)
	}
	logging.Infof(ctx, "uploaded %d rows to s3://%s/%s", ds.Len(), s.Bucket, key)
	return nil
}
