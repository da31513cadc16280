package records

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/warp/sales-payroll/generic"
)

// =============================================================================
// SCHEMA UPGRADES - Versioned chain, run once at store initialisation
// =============================================================================
//
// The schema version lives in the schemaVersion setting. Each step runs in
// its own transaction together with the version bump, so a crash between
// steps resumes at the first unapplied one. Steps only ever fill or rename
// absent fields, so re-running a step on upgraded data changes nothing.

type upgrade struct {
	version int
	name    string
	apply   func(ctx context.Context, s generic.Store) (int, error)
}

var upgrades = []upgrade{
	{1, "rename expert sale amount fields", renameSaleFields},
	{2, "rename expert sale amount fields in archives", renameArchivedSaleFields},
	{3, "default manager crmOk to compliant", defaultCRMOk},
}

// SchemaVersion is the latest version Migrate upgrades to.
func SchemaVersion() int { return upgrades[len(upgrades)-1].version }

// Migrate applies every pending upgrade and returns how many ran.
func (r *Repository) Migrate(ctx context.Context) (int, error) {
	current, err := r.schemaVersion(ctx)
	if err != nil {
		return 0, err
	}

	ran := 0
	for _, up := range upgrades {
		if up.version <= current {
			continue
		}
		var touched int
		err := generic.Atomically(ctx, r.store, func(s generic.Store) error {
			n, err := up.apply(ctx, s)
			if err != nil {
				return err
			}
			touched = n
			return s.PutSetting(ctx, generic.SettingSchemaVersion, strconv.Itoa(up.version))
		})
		if err != nil {
			return ran, fmt.Errorf("schema upgrade %d (%s): %w", up.version, up.name, err)
		}
		r.log.Info().
			Int("version", up.version).
			Str("upgrade", up.name).
			Int("records", touched).
			Msg("schema upgraded")
		ran++
	}
	return ran, nil
}

func (r *Repository) schemaVersion(ctx context.Context) (int, error) {
	v, ok, err := r.store.Setting(ctx, generic.SettingSchemaVersion)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("schema version %q: %w", v, err)
	}
	return n, nil
}

// =============================================================================
// STEPS
// =============================================================================

var saleRenames = map[string]string{
	"amountSum": "amount",
	"amountUsd": "amountUSD",
}

// renameFields moves legacy keys to their new names. A legacy key is
// dropped when the new one is already present.
func renameFields(obj map[string]json.RawMessage, renames map[string]string) bool {
	changed := false
	for from, to := range renames {
		v, ok := obj[from]
		if !ok {
			continue
		}
		if _, exists := obj[to]; !exists {
			obj[to] = v
		}
		delete(obj, from)
		changed = true
	}
	return changed
}

func renameSaleFields(ctx context.Context, s generic.Store) (int, error) {
	docs, err := s.List(ctx, generic.CollExpertSales)
	if err != nil {
		return 0, err
	}
	var changed []generic.Document
	for _, d := range docs {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(d.Body, &obj); err != nil {
			return 0, fmt.Errorf("decode %s/%s: %w", generic.CollExpertSales, d.Key, err)
		}
		if !renameFields(obj, saleRenames) {
			continue
		}
		body, err := json.Marshal(obj)
		if err != nil {
			return 0, err
		}
		changed = append(changed, generic.Document{Key: d.Key, Body: body})
	}
	if len(changed) == 0 {
		return 0, nil
	}
	return len(changed), s.Put(ctx, generic.CollExpertSales, changed...)
}

func renameArchivedSaleFields(ctx context.Context, s generic.Store) (int, error) {
	recs, err := s.Archives(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, rec := range recs {
		var stats map[string]json.RawMessage
		if err := json.Unmarshal(rec.Stats, &stats); err != nil {
			return n, fmt.Errorf("decode archive %s: %w", rec.ID, err)
		}
		rawBody, ok := stats["rawData"]
		if !ok || string(rawBody) == "null" {
			continue
		}
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(rawBody, &raw); err != nil {
			return n, fmt.Errorf("decode archive %s rawData: %w", rec.ID, err)
		}
		salesBody, ok := raw[string(generic.CollExpertSales)]
		if !ok {
			continue
		}
		var sales []map[string]json.RawMessage
		if err := json.Unmarshal(salesBody, &sales); err != nil {
			return n, fmt.Errorf("decode archive %s sales: %w", rec.ID, err)
		}
		changed := false
		for _, sale := range sales {
			if renameFields(sale, saleRenames) {
				changed = true
			}
		}
		if !changed {
			continue
		}
		if raw[string(generic.CollExpertSales)], err = json.Marshal(sales); err != nil {
			return n, err
		}
		if stats["rawData"], err = json.Marshal(raw); err != nil {
			return n, err
		}
		if rec.Stats, err = json.Marshal(stats); err != nil {
			return n, err
		}
		if err := s.SaveArchive(ctx, rec); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func defaultCRMOk(ctx context.Context, s generic.Store) (int, error) {
	docs, err := s.List(ctx, generic.CollManagerReports)
	if err != nil {
		return 0, err
	}
	var changed []generic.Document
	for _, d := range docs {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(d.Body, &obj); err != nil {
			return 0, fmt.Errorf("decode %s/%s: %w", generic.CollManagerReports, d.Key, err)
		}
		if v, ok := obj["crmOk"]; ok && string(v) != "null" {
			continue
		}
		obj["crmOk"] = json.RawMessage("true")
		body, err := json.Marshal(obj)
		if err != nil {
			return 0, err
		}
		changed = append(changed, generic.Document{Key: d.Key, Body: body})
	}
	if len(changed) == 0 {
		return 0, nil
	}
	return len(changed), s.Put(ctx, generic.CollManagerReports, changed...)
}
