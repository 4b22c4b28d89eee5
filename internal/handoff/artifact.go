package handoff

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/opensession/opensession-go/internal/cil"
	"github.com/opensession/opensession-go/internal/objectstore"
	"github.com/opensession/opensession-go/internal/parsers"
	"github.com/opensession/opensession-go/internal/sourceuri"
)

// ArtifactRecord is the durable, content-addressed document a handoff build
// writes: the canonical summary JSONL plus the raw sessions and validation
// reports that produced it, named by the sha256 of its canonical_jsonl.
type ArtifactRecord struct {
	Version           string            `json:"version"`
	SHA256            string            `json:"sha256"`
	CreatedAt         string            `json:"created_at"`
	SourceURIs        []string          `json:"source_uris"`
	CanonicalJSONL    string            `json:"canonical_jsonl"`
	RawSessions       []cil.Session     `json:"raw_sessions"`
	ValidationReports []ValidationReport `json:"validation_reports"`
}

// Builder assembles handoff artifacts from parsed sessions and writes them
// through the content-addressed store.
type Builder struct {
	Parsers   *parsers.Registry
	Sources   *objectstore.SourceStore
	Artifacts *objectstore.LayeredArtifactStore
}

// NewBuilder wires a Builder over the given registry and stores.
func NewBuilder(reg *parsers.Registry, sources *objectstore.SourceStore, artifacts *objectstore.LayeredArtifactStore) *Builder {
	return &Builder{Parsers: reg, Sources: sources, Artifacts: artifacts}
}

// BuildInputs names every source of sessions a build can draw from.
type BuildInputs struct {
	// Files are paths parsed fresh with the vendor-auto-detecting registry;
	// their canonical JSONL is stored and a new os://src/local/<hash> URI
	// is minted for each.
	Files []string
	// FromURIs are existing os://src/local/<hash> source URIs whose bytes
	// are re-read from the source store and decoded via the HAIL codec
	// (they are already canonical, so no vendor parser runs on them).
	FromURIs []string
	// ResolvedPaths are source file paths already picked out by the
	// caller (e.g. the local index's "last N" rows) — treated like Files
	// except paths that are missing, unreadable or fail to parse are
	// skipped rather than failing the whole build, matching how a stale
	// index row is tolerated.
	ResolvedPaths []string
	// Validate aborts the build with an error if any validation finding
	// is error-severity.
	Validate bool
	// Pin, if non-empty, is moved to the built artifact's hash on success.
	Pin string
}

// BuildResult is what a successful build returns.
type BuildResult struct {
	ArtifactURI string
	Hash        string
	Reports     []ValidationReport
}

// Build runs the artifact-build algorithm: parse every named source into a
// session, derive and validate summaries, canonicalize them, and write the
// resulting ArtifactRecord to the artifact store idempotently.
func (b *Builder) Build(in BuildInputs) (BuildResult, error) {
	var sessions []cil.Session
	var uris []string

	for _, path := range in.Files {
		session, uri, err := b.parseAndStore(path)
		if err != nil {
			return BuildResult{}, err
		}
		sessions = append(sessions, session)
		uris = append(uris, uri)
	}

	for _, uri := range in.FromURIs {
		session, err := b.loadFromURI(uri)
		if err != nil {
			return BuildResult{}, err
		}
		sessions = append(sessions, session)
		uris = append(uris, uri)
	}

	for _, path := range in.ResolvedPaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		session, uri, err := b.parseAndStore(path)
		if err != nil {
			continue
		}
		sessions = append(sessions, session)
		uris = append(uris, uri)
	}

	if len(sessions) == 0 {
		return BuildResult{}, fmt.Errorf("handoff: no sessions provided")
	}

	summaries := make([]HandoffSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, FromSession(s))
	}
	reports := ValidateSummaries(summaries)

	if in.Validate && HasErrorFindings(reports) {
		return BuildResult{}, fmt.Errorf("handoff validation failed: %d error-level findings", CountErrorFindings(reports))
	}

	canonical, err := CanonicalizeSummaries(summaries)
	if err != nil {
		return BuildResult{}, err
	}
	hash := sha256Hex([]byte(canonical))
	artifactURI := "os://artifact/" + hash

	sortedURIs := sortUnique(uris)

	record := ArtifactRecord{
		Version:           "v1",
		SHA256:            hash,
		CreatedAt:         time.Now().UTC().Format(time.RFC3339Nano),
		SourceURIs:        sortedURIs,
		CanonicalJSONL:    canonical,
		RawSessions:       sessions,
		ValidationReports: reports,
	}
	raw, err := json.MarshalIndent(&record, "", "  ")
	if err != nil {
		return BuildResult{}, fmt.Errorf("marshal artifact record: %w", err)
	}
	if err := b.Artifacts.Local.Write(hash, raw); err != nil {
		return BuildResult{}, fmt.Errorf("write artifact %s: %w", hash, err)
	}

	if in.Pin != "" {
		if err := b.Artifacts.Local.Pin(in.Pin, hash); err != nil {
			return BuildResult{}, err
		}
	}

	return BuildResult{ArtifactURI: artifactURI, Hash: hash, Reports: reports}, nil
}

func (b *Builder) parseAndStore(path string) (cil.Session, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cil.Session{}, "", fmt.Errorf("read %s: %w", path, err)
	}

	result, err := b.Parsers.Preview(path, data, "")
	if err != nil {
		return cil.Session{}, "", fmt.Errorf("parse %s: %w", path, err)
	}
	session := result.Session
	session.RecomputeStats()

	canonical, err := cil.ToJSONLString(session)
	if err != nil {
		return cil.Session{}, "", fmt.Errorf("serialize canonical jsonl for %s: %w", path, err)
	}
	hash, err := b.Sources.Store([]byte(canonical))
	if err != nil {
		return cil.Session{}, "", fmt.Errorf("store source object for %s: %w", path, err)
	}
	return session, "os://src/local/" + hash, nil
}

func (b *Builder) loadFromURI(uri string) (cil.Session, error) {
	parsed, err := sourceuri.Parse(uri)
	if err != nil {
		return cil.Session{}, fmt.Errorf("parse source uri %q: %w", uri, err)
	}
	hash := parsed.AsLocalHash()
	if hash == "" {
		return cil.Session{}, fmt.Errorf("source uri %q is not a local source", uri)
	}
	_, data, err := b.Sources.Read(hash)
	if err != nil {
		return cil.Session{}, fmt.Errorf("read source object %s: %w", hash, err)
	}
	session, err := cil.FromJSONLString(string(data))
	if err != nil {
		return cil.Session{}, fmt.Errorf("parse source uri %q as HAIL JSONL: %w", uri, err)
	}
	session.RecomputeStats()
	return session, nil
}

// List returns every artifact record visible across the layered store,
// local entries first.
func (b *Builder) List() ([]ArtifactRecord, error) {
	hashes, err := b.Artifacts.List()
	if err != nil {
		return nil, err
	}
	records := make([]ArtifactRecord, 0, len(hashes))
	for _, hash := range hashes {
		record, err := b.loadRecord(hash)
		if err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// Get resolves an artifact identifier (raw hash, os://artifact/... URI, or
// pin alias) and returns its record.
func (b *Builder) Get(idOrURI string) (ArtifactRecord, error) {
	hash, err := b.Artifacts.Resolve(idOrURI)
	if err != nil {
		return ArtifactRecord{}, err
	}
	return b.loadRecord(hash)
}

// Verify reloads an artifact and confirms its stored hash, the filename
// hash, and a fresh sha256 of its canonical_jsonl all agree.
func (b *Builder) Verify(idOrURI string) error {
	hash, err := b.Artifacts.Resolve(idOrURI)
	if err != nil {
		return err
	}
	record, err := b.loadRecord(hash)
	if err != nil {
		return err
	}
	recomputed := sha256Hex([]byte(record.CanonicalJSONL))
	if recomputed != record.SHA256 || record.SHA256 != hash {
		return fmt.Errorf("handoff: artifact hash mismatch for %s", hash)
	}
	return nil
}

// Delete removes an artifact record. It refuses while any pin alias still
// references the resolved hash.
func (b *Builder) Delete(idOrURI string) error {
	hash, err := b.Artifacts.Resolve(idOrURI)
	if err != nil {
		return err
	}
	return b.Artifacts.Local.Delete(hash)
}

// Pin moves alias to point at the resolved artifact.
func (b *Builder) Pin(alias, idOrURI string) error {
	hash, err := b.Artifacts.Resolve(idOrURI)
	if err != nil {
		return err
	}
	return b.Artifacts.Local.Pin(alias, hash)
}

// Unpin removes alias.
func (b *Builder) Unpin(alias string) error {
	return b.Artifacts.Local.Unpin(alias)
}

func (b *Builder) loadRecord(hash string) (ArtifactRecord, error) {
	raw, err := b.Artifacts.Read(hash)
	if err != nil {
		return ArtifactRecord{}, err
	}
	var record ArtifactRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return ArtifactRecord{}, fmt.Errorf("parse artifact record %s: %w", hash, err)
	}
	return record, nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func sortUnique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
