package invoke

import (
	"strconv"
	"strings"
	"time"
)

// Placeholders substituted in the payload template on every invocation.
const (
	DatePlaceholder   = "##DATE##"
	NumberPlaceholder = "##NUM##"
)

// PayloadRange bounds the random number substituted for NumberPlaceholder.
const PayloadRange = 10000

// Template is a JSON payload with optional placeholders.
type Template string

// Render substitutes every placeholder occurrence.
func (t Template) Render(now time.Time, num int) string {
	r := strings.NewReplacer(
		DatePlaceholder, now.UTC().Format(time.RFC3339Nano),
		NumberPlaceholder, strconv.Itoa(num),
	)
	return r.Replace(string(t))
}
