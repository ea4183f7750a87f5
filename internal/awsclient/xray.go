package awsclient

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/xray"
	"golang.org/x/time/rate"

	"github.com/imishinist/coldbench/internal/models"
	"github.com/imishinist/coldbench/internal/traces"
)

// XRayAPI is the subset of the X-Ray client the backend uses.
type XRayAPI interface {
	GetTraceSummaries(ctx context.Context, in *xray.GetTraceSummariesInput, optFns ...func(*xray.Options)) (*xray.GetTraceSummariesOutput, error)
	BatchGetTraces(ctx context.Context, in *xray.BatchGetTracesInput, optFns ...func(*xray.Options)) (*xray.BatchGetTracesOutput, error)
}

// XRayBackend implements traces.Backend. X-Ray throttles trace queries per
// account, so every call first waits on a shared token bucket.
type XRayBackend struct {
	api     XRayAPI
	limiter *rate.Limiter
}

var _ traces.Backend = (*XRayBackend)(nil)

// NewXRayBackend limits calls to perSecond requests; a non-positive value
// disables the limit.
func NewXRayBackend(api XRayAPI, perSecond float64) *XRayBackend {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &XRayBackend{
		api:     api,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (b *XRayBackend) GetTraceSummaries(ctx context.Context, query traces.SummaryQuery, token string) (*traces.SummaryPage, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	out, err := b.api.GetTraceSummaries(ctx, &xray.GetTraceSummariesInput{
		StartTime:        aws.Time(query.StartTime),
		EndTime:          aws.Time(query.EndTime),
		FilterExpression: aws.String(query.FilterExpression()),
		NextToken:        optional(token),
	})
	if err != nil {
		return nil, err
	}

	page := &traces.SummaryPage{NextToken: aws.ToString(out.NextToken)}
	for _, s := range out.TraceSummaries {
		page.Summaries = append(page.Summaries, models.TraceSummary{ID: aws.ToString(s.Id)})
	}
	return page, nil
}

func (b *XRayBackend) BatchGetTraces(ctx context.Context, ids []string, token string) (*traces.BatchPage, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	out, err := b.api.BatchGetTraces(ctx, &xray.BatchGetTracesInput{
		TraceIds:  ids,
		NextToken: optional(token),
	})
	if err != nil {
		return nil, err
	}

	page := &traces.BatchPage{
		UnprocessedIDs: out.UnprocessedTraceIds,
		NextToken:      aws.ToString(out.NextToken),
	}
	for _, t := range out.Traces {
		raw := traces.RawTrace{ID: aws.ToString(t.Id)}
		for _, seg := range t.Segments {
			raw.Segments = append(raw.Segments, traces.RawSegment{
				ID:       aws.ToString(seg.Id),
				Document: seg.Document,
			})
		}
		page.Traces = append(page.Traces, raw)
	}
	return page, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}
