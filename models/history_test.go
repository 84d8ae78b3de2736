package models

import (
	"testing"
)

func seedHistory(t *testing.T) *MemHistoryStore {
	history := NewMemHistoryStore()

	for _, rec := range []HistoryRecordType{
		{Version: 10, StoreName: "widgets", ItemID: 1, State: StateCreated},
		{Version: 20, StoreName: "widgets", ItemID: 1, State: StateUpdated},
		{Version: 30, StoreName: "gadgets", ItemID: 7, State: StateCreated},
	} {
		err := history.Append(rec)
		if err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	return history
}

func TestHistoryQueryAfter(t *testing.T) {
	history := seedHistory(t)

	records, _, err := history.Query(HistoryQueryType{After: 20})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("after=20 returned %d records, should be 1", len(records))
	}
	if records[0].Version != 30 {
		t.Errorf("after=20 returned version %d, should be 30", records[0].Version)
	}
}

func TestHistoryQuerySince(t *testing.T) {
	history := seedHistory(t)

	records, _, err := history.Query(HistoryQueryType{Since: 20})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("since=20 returned %d records, should be 2", len(records))
	}
	if records[0].Version != 20 || records[1].Version != 30 {
		t.Errorf(
			"since=20 returned versions [%d, %d], should be [20, 30]",
			records[0].Version,
			records[1].Version,
		)
	}
}

func TestHistoryQueryByStore(t *testing.T) {
	history := seedHistory(t)

	records, _, err := history.Query(HistoryQueryType{StoreName: "widgets"})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("store=widgets returned %d records, should be 2", len(records))
	}
	for _, rec := range records {
		if rec.StoreName != "widgets" {
			t.Errorf("record store = %s, should be widgets", rec.StoreName)
		}
	}
}

func TestHistoryLatestVersionFor(t *testing.T) {
	history := seedHistory(t)

	version, found, err := history.LatestVersionFor("widgets")
	if err != nil {
		t.Fatalf("LatestVersionFor() error: %v", err)
	}
	if !found {
		t.Fatal("LatestVersionFor(widgets) should find a record")
	}
	if version != 20 {
		t.Errorf("LatestVersionFor(widgets) = %d, should be 20", version)
	}

	_, found, err = history.LatestVersionFor("unknown")
	if err != nil {
		t.Fatalf("LatestVersionFor() error: %v", err)
	}
	if found {
		t.Error("LatestVersionFor(unknown) should find nothing")
	}
}

func TestHistoryRecordsImmutableOrder(t *testing.T) {
	history := seedHistory(t)

	records, _, err := history.Query(HistoryQueryType{})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}

	for i := 1; i < len(records); i++ {
		if records[i].ID <= records[i-1].ID {
			t.Errorf(
				"record order broken: id %d follows id %d",
				records[i].ID,
				records[i-1].ID,
			)
		}
	}
}
