package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestParseScheduleTime(t *testing.T) {
	st, err := ParseScheduleTime("06:30")
	if err != nil {
		t.Fatalf("ParseScheduleTime failed: %v", err)
	}
	if st.Hour != 6 || st.Minute != 30 {
		t.Errorf("parsed %+v", st)
	}
	if st.String() != "06:30" {
		t.Errorf("String() = %q", st.String())
	}

	for _, bad := range []string{"24:00", "12:60", "noon", ""} {
		if _, err := ParseScheduleTime(bad); err == nil {
			t.Errorf("expected %q to fail", bad)
		}
	}
}

func TestNew_RequiresScheduleTime(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error with no schedule times")
	}
	if _, err := New(Config{ScheduleTimes: []string{"bad"}}); err == nil {
		t.Error("expected error with unparseable schedule time")
	}
}

func TestShouldRun(t *testing.T) {
	s, err := New(Config{ScheduleTimes: []string{"06:00", "18:00"}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	at := func(hour, minute int) time.Time {
		return time.Date(2026, 3, 15, hour, minute, 30, 0, time.UTC)
	}

	if s.shouldRun(at(5, 59)) {
		t.Error("fired off schedule")
	}
	if !s.shouldRun(at(6, 0)) {
		t.Error("did not fire at scheduled time")
	}
	if s.shouldRun(at(6, 0)) {
		t.Error("fired twice within the same minute")
	}
	if !s.shouldRun(at(18, 0)) {
		t.Error("did not fire at second scheduled time")
	}
}

type recordingJob struct {
	name string
	log  *[]string
}

func (j *recordingJob) Description() string { return j.name }

func (j *recordingJob) Execute(ctx context.Context) error {
	*j.log = append(*j.log, j.name)
	return nil
}

func TestRunJobs_Sequential(t *testing.T) {
	var order []string
	s, err := New(Config{
		ScheduleTimes: []string{"06:00"},
		Jobs: []Job{
			&recordingJob{name: "first", log: &order},
			&recordingJob{name: "second", log: &order},
			&recordingJob{name: "third", log: &order},
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	s.runJobs()

	if len(order) != 3 || order[0] != "first" || order[1] != "second" || order[2] != "third" {
		t.Errorf("execution order = %v", order)
	}
}

func TestNextScheduledTime(t *testing.T) {
	s, err := New(Config{ScheduleTimes: []string{"00:00"}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	next := s.NextScheduledTime()
	if !next.After(time.Now()) {
		t.Errorf("next run %v is not in the future", next)
	}
	if next.Hour() != 0 || next.Minute() != 0 {
		t.Errorf("next run %v not at midnight", next)
	}
}
