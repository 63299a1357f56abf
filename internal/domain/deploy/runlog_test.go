package deploy_test

import (
	"testing"
	"time"

	"github.com/velonis/blueprint/internal/domain/deploy"
)

func TestRunLogOrderAndLevels(t *testing.T) {
	log := deploy.NewRunLog()
	log.Infof("one")
	log.Warnf("two %d", 2)
	log.Errorf("three")

	entries := log.Entries()
	if len(entries) != 3 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].Message != "one" || entries[1].Message != "two 2" {
		t.Errorf("unexpected order: %+v", entries)
	}
	if entries[2].Level != "ERROR" {
		t.Errorf("level = %s", entries[2].Level)
	}
}

func TestRunLogSlogHandler(t *testing.T) {
	log := deploy.NewRunLog()
	log.Logger().Info("created task", "id", "t1")

	entries := log.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].Message != "created task id=t1" {
		t.Errorf("message = %q", entries[0].Message)
	}
}

func TestRunLogSubscribe(t *testing.T) {
	log := deploy.NewRunLog()
	ch := log.Subscribe()
	log.Infof("streamed")
	log.Close()

	select {
	case e := <-ch:
		if e.Message != "streamed" {
			t.Errorf("message = %q", e.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("no entry received")
	}
	if _, open := <-ch; open {
		t.Error("channel not closed")
	}
}

func TestResultSummarize(t *testing.T) {
	r := deploy.NewResult("run1")
	r.Summarize(time.Now())
	if r.Success {
		t.Error("no phases should mean failure")
	}

	r = deploy.NewResult("run2")
	r.Phases = append(r.Phases, deploy.TaskRef{ID: "p1"})
	r.AddError("one action failed")
	r.Summarize(time.Now())
	if !r.Success {
		t.Error("a created phase with recoverable errors is still a success")
	}
}
