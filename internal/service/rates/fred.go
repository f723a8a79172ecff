// Package rates supplies the risk-free rate used by the probability engine.
package rates

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	drepo "SpreadScout/internal/domain/repository"
	xhttp "SpreadScout/pkg/http"
)

const (
	DefaultFREDURL = "https://fred.stlouisfed.org/graph/fredgraph.csv"
	DefaultSeries  = "DGS3MO"
)

var ErrNoObservation = errors.New("rates: no observation in series")

// FREDSource reads the latest 3-month Treasury yield from the FRED CSV
// export.
type FREDSource struct {
	client *xhttp.Client
	url    string
	series string
}

func NewFREDSource(client *xhttp.Client, url, series string) *FREDSource {
	if url == "" {
		url = DefaultFREDURL
	}
	if series == "" {
		series = DefaultSeries
	}
	return &FREDSource{client: client, url: url, series: series}
}

var _ drepo.RateSource = (*FREDSource)(nil)

// FetchRate returns the last published observation as a decimal rate.
func (s *FREDSource) FetchRate(ctx context.Context) (float64, error) {
	var body []byte
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         s.url,
		QueryParams: map[string][]string{"id": {s.series}},
	}, &body)
	if err != nil {
		return 0, fmt.Errorf("fred %s: %w", s.series, err)
	}
	pct, err := lastObservation(bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("fred %s: %w", s.series, err)
	}
	return pct / 100, nil
}

// lastObservation returns the value column of the last row that carries a
// number. FRED marks missing days with ".".
func lastObservation(r io.Reader) (float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("parse csv: %w", err)
	}
	for i := len(rows) - 1; i >= 1; i-- {
		row := rows[i]
		if len(row) < 2 {
			continue
		}
		v := strings.TrimSpace(row[len(row)-1])
		if v == "" || v == "." {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		return f, nil
	}
	return 0, ErrNoObservation
}
