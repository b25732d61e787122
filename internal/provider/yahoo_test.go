package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newChartServer(t *testing.T, body string) *YahooProvider {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)

	p := NewYahooProvider(time.Second, zap.NewNop())
	p.baseURL = server.URL
	return p
}

func TestYahooHistorySkipsRaggedColumns(t *testing.T) {
	// Three timestamps but only one open value; the short columns must
	// not be indexed past their length.
	body := `{"chart":{"result":[{
		"timestamp":[1735776000,1735862400,1735948800],
		"indicators":{"quote":[{
			"open":[100.0],
			"high":[101.0,102.0,103.0],
			"low":[99.0,98.0,97.0],
			"close":[100.5,101.5,102.5],
			"volume":[1000,2000,3000]
		}]}
	}]}}`
	p := newChartServer(t, body)

	bars, err := p.History(context.Background(), "AAPL", "5d")

	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 100.0, bars[0].Open)
	assert.Equal(t, 100.5, bars[0].Close)
}

func TestYahooHistoryNoUsableBars(t *testing.T) {
	body := `{"chart":{"result":[{
		"timestamp":[1735776000,1735862400],
		"indicators":{"quote":[{
			"open":[],
			"high":[101.0,102.0],
			"low":[99.0,98.0],
			"close":[100.5,101.5],
			"volume":[1000,2000]
		}]}
	}]}}`
	p := newChartServer(t, body)

	_, err := p.History(context.Background(), "AAPL", "5d")

	assert.ErrorIs(t, err, ErrParse)
}
