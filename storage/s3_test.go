package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealscope/config"
	"dealscope/models"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestReportArchive_Put(t *testing.T) {
	putter := &fakePutter{}
	archive := &ReportArchive{client: putter, cfg: config.S3Config{Bucket: "reports", Region: "us-east-1"}}

	ev := &models.Evaluation{
		PropertyID:  "p-1",
		Grade:       models.GradeB,
		EvaluatedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}
	url, err := archive.Put(context.Background(), ev)
	require.NoError(t, err)

	assert.Equal(t, "evaluations/p-1/20260304T050607Z.json", aws.ToString(putter.input.Key))
	assert.Equal(t, "reports", aws.ToString(putter.input.Bucket))
	assert.Equal(t, "application/json", aws.ToString(putter.input.ContentType))
	assert.Equal(t, "https://reports.s3.us-east-1.amazonaws.com/evaluations/p-1/20260304T050607Z.json", url)

	var decoded models.Evaluation
	require.NoError(t, json.Unmarshal(putter.body, &decoded))
	assert.Equal(t, models.GradeB, decoded.Grade)
}

func TestReportArchive_PutError(t *testing.T) {
	archive := &ReportArchive{client: &fakePutter{err: errors.New("denied")}, cfg: config.S3Config{Bucket: "reports"}}
	_, err := archive.Put(context.Background(), &models.Evaluation{PropertyID: "p-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
}

func TestReportArchive_PublicURL(t *testing.T) {
	spaces := &ReportArchive{cfg: config.S3Config{Bucket: "b", Endpoint: "https://nyc3.digitaloceanspaces.com"}}
	assert.Equal(t, "https://b.nyc3.digitaloceanspaces.com/k.json", spaces.PublicURL("k.json"))

	minio := &ReportArchive{cfg: config.S3Config{Bucket: "b", Endpoint: "http://localhost:9000/"}}
	assert.Equal(t, "http://localhost:9000/b/k.json", minio.PublicURL("k.json"))
}
