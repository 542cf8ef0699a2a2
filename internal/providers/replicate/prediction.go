package replicate

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"kiranalogo/internal/domain"
)

// Prediction is the provider's view of a job, as returned by the API and
// posted to webhooks.
type Prediction struct {
	ID          string
	Version     string
	Status      domain.PredictionStatus
	Input       json.RawMessage
	Output      []string
	Error       string
	Logs        string
	Metrics     json.RawMessage
	CreatedAt   *time.Time
	CompletedAt *time.Time
	GetURL      string
}

// UnmarshalJSON reads the payload loosely: output may be a single URL or a
// list of URLs and error may be a string or an object.
func (p *Prediction) UnmarshalJSON(raw []byte) error {
	if !gjson.ValidBytes(raw) {
		return errors.New("replicate: invalid prediction payload")
	}
	doc := gjson.ParseBytes(raw)
	p.ID = doc.Get("id").String()
	p.Version = doc.Get("version").String()
	p.Status = domain.PredictionStatus(doc.Get("status").String())
	p.Logs = doc.Get("logs").String()
	p.GetURL = doc.Get("urls.get").String()

	if in := doc.Get("input"); in.Exists() && in.Type != gjson.Null {
		p.Input = json.RawMessage(in.Raw)
	}
	if m := doc.Get("metrics"); m.IsObject() {
		p.Metrics = json.RawMessage(m.Raw)
	}

	p.Output = nil
	out := doc.Get("output")
	switch {
	case out.IsArray():
		for _, item := range out.Array() {
			if s := strings.TrimSpace(item.String()); s != "" && item.Type == gjson.String {
				p.Output = append(p.Output, s)
			}
		}
	case out.Type == gjson.String:
		if s := strings.TrimSpace(out.String()); s != "" {
			p.Output = []string{s}
		}
	}

	p.Error = ""
	if e := doc.Get("error"); e.Exists() && e.Type != gjson.Null {
		if e.IsObject() {
			p.Error = e.Get("detail").String()
			if p.Error == "" {
				p.Error = e.Raw
			}
		} else {
			p.Error = e.String()
		}
	}

	p.CreatedAt = parseTime(doc.Get("created_at"))
	p.CompletedAt = parseTime(doc.Get("completed_at"))
	return nil
}

// Update converts the provider state into a job record update.
func (p *Prediction) Update() domain.PredictionUpdate {
	return domain.PredictionUpdate{
		Status:      p.Status,
		Output:      p.Output,
		Error:       p.Error,
		Metrics:     p.Metrics,
		CompletedAt: p.CompletedAt,
	}
}

func parseTime(v gjson.Result) *time.Time {
	if v.Type != gjson.String || v.String() == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String())
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
