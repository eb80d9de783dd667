package di

import (
	"errors"
	"reflect"
	"testing"

	"StratEq/internal/domain/models"
	"StratEq/pkg/config"
)

func TestProvideProfilesNormalizesActions(t *testing.T) {
	cfg := &config.Config{
		Actors: []config.ActorConfig{
			{
				Name:    "USA",
				Actions: []string{"stimulus", "hawkish", "stimulus", "deescalate"},
			},
			{
				Name:    "Taiwan",
				Actions: []string{"stimulus", "deescalate"},
			},
		},
	}

	profiles, err := ProvideProfiles(cfg)
	if err != nil {
		t.Fatalf("provide profiles: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("profiles = %d, want 2", len(profiles))
	}

	// Out-of-order, duplicated input comes out ascending and deduped.
	want := []models.Action{models.ActionHawkish, models.ActionDeescalate, models.ActionStimulus}
	if !reflect.DeepEqual(profiles[0].Allowed, want) {
		t.Errorf("USA allowed = %v, want %v", profiles[0].Allowed, want)
	}
	want = []models.Action{models.ActionDeescalate, models.ActionStimulus}
	if !reflect.DeepEqual(profiles[1].Allowed, want) {
		t.Errorf("Taiwan allowed = %v, want %v", profiles[1].Allowed, want)
	}
}

func TestProvideProfilesRejectsUnknownAction(t *testing.T) {
	cfg := &config.Config{
		Actors: []config.ActorConfig{
			{Name: "USA", Actions: []string{"hawkish", "blockade"}},
		},
	}
	if _, err := ProvideProfiles(cfg); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("unknown action: got %v", err)
	}
}
