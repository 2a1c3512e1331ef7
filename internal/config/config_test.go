package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.EditLeadTime != 8*time.Hour {
		t.Errorf("expected default edit lead time 8h, got %s", cfg.EditLeadTime)
	}
	if cfg.ReExamMinLead != 24*time.Hour {
		t.Errorf("expected default re-exam lead 24h, got %s", cfg.ReExamMinLead)
	}
	if cfg.NoteMaxLen != 500 {
		t.Errorf("expected default note cap 500, got %d", cfg.NoteMaxLen)
	}
	if !cfg.ReleaseSlotOnStaffCancel {
		t.Error("expected staff cancel to release the slot by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("EDIT_LEAD_TIME", "4h")
	t.Setenv("RELEASE_SLOT_ON_STAFF_CANCEL", "false")
	t.Setenv("NOTE_MAX_LEN", "250")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.EditLeadTime != 4*time.Hour {
		t.Errorf("expected edit lead time 4h, got %s", cfg.EditLeadTime)
	}
	if cfg.ReleaseSlotOnStaffCancel {
		t.Error("expected staff cancel slot release to be disabled")
	}
	if cfg.NoteMaxLen != 250 {
		t.Errorf("expected note cap 250, got %d", cfg.NoteMaxLen)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("EDIT_LEAD_TIME", "not-a-duration")
	t.Setenv("NOTE_MAX_LEN", "many")

	cfg := Load()

	if cfg.EditLeadTime != 8*time.Hour {
		t.Errorf("expected fallback 8h, got %s", cfg.EditLeadTime)
	}
	if cfg.NoteMaxLen != 500 {
		t.Errorf("expected fallback 500, got %d", cfg.NoteMaxLen)
	}
}
