package traces

import (
	"context"
	"fmt"
	"time"

	"github.com/imishinist/coldbench/internal/models"
)

type batchCall struct {
	ids   []string
	token string
}

type fakeBackend struct {
	summaryFn    func(call int, token string) (*SummaryPage, error)
	summaryCalls []string

	batchFn    func(call int, ids []string, token string) (*BatchPage, error)
	batchCalls []batchCall
}

func (f *fakeBackend) GetTraceSummaries(_ context.Context, _ SummaryQuery, token string) (*SummaryPage, error) {
	f.summaryCalls = append(f.summaryCalls, token)
	return f.summaryFn(len(f.summaryCalls), token)
}

func (f *fakeBackend) BatchGetTraces(_ context.Context, ids []string, token string) (*BatchPage, error) {
	f.batchCalls = append(f.batchCalls, batchCall{ids: append([]string(nil), ids...), token: token})
	return f.batchFn(len(f.batchCalls), ids, token)
}

// recordingSleep counts waits without blocking.
type recordingSleep struct {
	waits []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func summaryList(ids ...string) []models.TraceSummary {
	out := make([]models.TraceSummary, len(ids))
	for i, id := range ids {
		out[i] = models.TraceSummary{ID: id}
	}
	return out
}

func segmentDoc(origin string, start, end float64, subs ...string) *string {
	doc := fmt.Sprintf(`{"id":"seg","name":"fn","origin":%q,"start_time":%v,"end_time":%v,"aws":{"account_id":"123456789012"},"http":{"response":{"status":200}}`,
		origin, start, end)
	if len(subs) > 0 {
		doc += `,"subsegments":[`
		for i, s := range subs {
			if i > 0 {
				doc += ","
			}
			doc += s
		}
		doc += "]"
	}
	doc += "}"
	return &doc
}

func subDoc(name string, start, end float64) string {
	return fmt.Sprintf(`{"id":"sub","name":%q,"start_time":%v,"end_time":%v,"annotations":{"secret":"x"}}`, name, start, end)
}
