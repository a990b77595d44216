package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := ParseDate(value)
	require.NoError(t, err)
	return d
}

func TestQueryValidate(t *testing.T) {
	t.Parallel()

	now := time.Date(2021, time.March, 1, 12, 0, 0, 0, time.UTC)
	valid := Query{
		Terms:      []string{"launch"},
		Start:      date(t, "2021-01-01"),
		End:        date(t, "2021-01-02"),
		MaxRecords: 3,
	}
	require.NoError(t, valid.Validate(now))

	cases := map[string]func(q *Query){
		"no terms":        func(q *Query) { q.Terms = nil },
		"blank term":      func(q *Query) { q.Terms = []string{"launch", "  "} },
		"zero bound":      func(q *Query) { q.MaxRecords = 0 },
		"start after end": func(q *Query) { q.Start = date(t, "2021-01-03") },
		"end in future":   func(q *Query) { q.End = now.Add(24 * time.Hour) },
	}

	for name, mutate := range cases {
		q := valid
		q.Terms = append([]string(nil), valid.Terms...)
		mutate(&q)
		err := q.Validate(now)
		assert.ErrorIs(t, err, ErrInvalidQuery, name)
	}
}

func TestQueryValidateAllowsTodayAndEqualBounds(t *testing.T) {
	t.Parallel()

	now := time.Date(2021, time.January, 2, 9, 30, 0, 0, time.UTC)
	q := Query{
		Terms:      []string{"x"},
		Start:      date(t, "2021-01-02"),
		End:        date(t, "2021-01-02"),
		MaxRecords: 1,
	}
	assert.NoError(t, q.Validate(now))
}

func TestBuildSearch(t *testing.T) {
	t.Parallel()

	q := Query{
		Terms: []string{"rocket", "launch"},
		Start: date(t, "2021-01-01"),
		End:   date(t, "2021-01-02"),
	}

	search := q.BuildSearch("en")
	assert.Equal(t, "rocket launch lang:en since:2021-01-01 until:2021-01-02 -filter:replies", search.Text)
	assert.Equal(t, q.Start, search.Since)
	assert.Equal(t, q.End, search.Until)

	noLang := q.BuildSearch("")
	assert.Equal(t, "rocket launch since:2021-01-01 until:2021-01-02 -filter:replies", noLang.Text)
}

func TestParseDateRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := ParseDate("01/02/2021")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestRecordValuesOrder(t *testing.T) {
	t.Parallel()

	ts := time.Date(2021, time.January, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	rec := NewRecord(Post{ID: "1", Timestamp: ts, Author: "a", URL: "u", Content: "c"}, 0.5,
		Sentiment{Positive: 0.1, Neutral: 0.8, Negative: 0.1})

	values := rec.Values()
	require.Len(t, values, len(RecordFields))
	assert.Equal(t, "1", values[0])
	assert.Equal(t, ts.UTC(), values[1])
	assert.Equal(t, 0.5, values[5])
	assert.Equal(t, 0.1, values[8])
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	connErr := fmt.Errorf("open sink: %w: %w: refused", ErrSinkUnavailable, ErrConnection)
	commitErr := fmt.Errorf("close sink: %w: %w: broken pipe", ErrWriteFailure, ErrConnection)

	assert.Equal(t, ExitCompleted, ExitCode(nil))
	assert.Equal(t, ExitInvalidQuery, ExitCode(fmt.Errorf("run: %w", ErrInvalidQuery)))
	assert.Equal(t, ExitSinkUnavailable, ExitCode(connErr))
	assert.Equal(t, ExitFailed, ExitCode(commitErr))
	assert.Equal(t, ExitFailed, ExitCode(ErrScoringFailure))
	assert.Equal(t, ExitFailed, ExitCode(errors.New("boom")))
	assert.ErrorIs(t, connErr, ErrConnection)
	assert.ErrorIs(t, commitErr, ErrConnection)
}
