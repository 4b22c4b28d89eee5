// Package sourceuri implements the os:// URI grammar that identifies where
// a piece of evidence (a file read, a diff hunk) came from: a locally
// hashed blob, or a path at a ref on a remote GitHub/GitLab/generic-git
// repository — plus the os://artifact/<sha256> form that names a built
// handoff artifact.
package sourceuri

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Kind discriminates the URI's top-level shape.
type Kind string

const (
	KindArtifact Kind = "artifact"
	KindLocal    Kind = "local"
	KindGh       Kind = "gh"
	KindGl       Kind = "gl"
	KindGit      Kind = "git"
)

// URI is a parsed os:// reference. Only the fields relevant to Kind are
// meaningful.
type URI struct {
	Kind Kind

	SHA256 string // Artifact, Local

	Owner string // Gh
	Repo  string // Gh
	Ref   string // Gh, Gl, Git
	Path  string // Gh, Gl, Git

	Project string // Gl
	Remote  string // Git
}

// Error is a parse failure, tagged with which grammar rule rejected the
// input so callers (and tests) can match on failure kind without parsing
// error strings.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

type ErrorKind string

const (
	ErrInvalidScheme       ErrorKind = "invalid_scheme"
	ErrUnsupportedKind     ErrorKind = "unsupported_kind"
	ErrInvalidStructure    ErrorKind = "invalid_structure"
	ErrInvalidHash         ErrorKind = "invalid_hash"
	ErrInvalidRefEncoding  ErrorKind = "invalid_ref_encoding"
	ErrInvalidPathEncoding ErrorKind = "invalid_path_encoding"
	ErrInvalidBase64       ErrorKind = "invalid_base64"
)

func newErr(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Parse parses an os:// URI string.
func Parse(input string) (URI, error) {
	body, ok := strings.CutPrefix(input, "os://")
	if !ok {
		return URI{}, newErr(ErrInvalidScheme, "uri must start with os://")
	}

	if hash, ok := strings.CutPrefix(body, "artifact/"); ok {
		if err := validateSHA256(hash); err != nil {
			return URI{}, err
		}
		return URI{Kind: KindArtifact, SHA256: hash}, nil
	}

	segments := splitNonEmpty(body)
	if len(segments) < 2 {
		return URI{}, newErr(ErrInvalidStructure, "expected os://src/<provider>/...")
	}
	if segments[0] != "src" {
		return URI{}, newErr(ErrUnsupportedKind, "unsupported uri kind: %s", segments[0])
	}

	provider, rest := segments[1], segments[2:]
	switch provider {
	case "local":
		return parseLocal(rest)
	case "gh":
		return parseGh(rest)
	case "gl":
		return parseGl(rest)
	case "git":
		return parseGit(rest)
	default:
		return URI{}, newErr(ErrUnsupportedKind, "unsupported uri kind: %s", provider)
	}
}

// IsRemoteSource reports whether the URI references a remote source
// (gh/gl/git), as opposed to a locally hashed blob or a built artifact.
func (u URI) IsRemoteSource() bool {
	switch u.Kind {
	case KindGh, KindGl, KindGit:
		return true
	default:
		return false
	}
}

// AsLocalHash returns the sha256 of a Local-kind URI, or "" otherwise.
func (u URI) AsLocalHash() string {
	if u.Kind == KindLocal {
		return u.SHA256
	}
	return ""
}

// AsArtifactHash returns the sha256 of an Artifact-kind URI, or "" otherwise.
func (u URI) AsArtifactHash() string {
	if u.Kind == KindArtifact {
		return u.SHA256
	}
	return ""
}

// ToWebPath renders the web-facing route for a remote source URI, or ""
// for local/artifact URIs which have no browsable path.
func (u URI) ToWebPath() string {
	switch u.Kind {
	case KindGh:
		return fmt.Sprintf("/src/gh/%s/%s/ref/%s/path/%s", u.Owner, u.Repo, encodeRef(u.Ref), encodePath(u.Path))
	case KindGl:
		return fmt.Sprintf("/src/gl/%s/ref/%s/path/%s", encodeB64(u.Project), encodeRef(u.Ref), encodePath(u.Path))
	case KindGit:
		return fmt.Sprintf("/src/git/%s/ref/%s/path/%s", encodeB64(u.Remote), encodeRef(u.Ref), encodePath(u.Path))
	default:
		return ""
	}
}

// String renders the canonical os:// form. Parse(u.String()) must return an
// equal URI for every variant — this is the round-trip invariant tested by
// sourceuri_test.go.
func (u URI) String() string {
	switch u.Kind {
	case KindArtifact:
		return "os://artifact/" + u.SHA256
	case KindLocal:
		return "os://src/local/" + u.SHA256
	case KindGh:
		return fmt.Sprintf("os://src/gh/%s/%s/ref/%s/path/%s", u.Owner, u.Repo, encodeRef(u.Ref), encodePath(u.Path))
	case KindGl:
		return fmt.Sprintf("os://src/gl/%s/ref/%s/path/%s", encodeB64(u.Project), encodeRef(u.Ref), encodePath(u.Path))
	case KindGit:
		return fmt.Sprintf("os://src/git/%s/ref/%s/path/%s", encodeB64(u.Remote), encodeRef(u.Ref), encodePath(u.Path))
	default:
		return ""
	}
}

func parseLocal(rest []string) (URI, error) {
	if len(rest) != 1 {
		return URI{}, newErr(ErrInvalidStructure, "local uri must be os://src/local/<sha256>")
	}
	if err := validateSHA256(rest[0]); err != nil {
		return URI{}, err
	}
	return URI{Kind: KindLocal, SHA256: rest[0]}, nil
}

func parseGh(rest []string) (URI, error) {
	if len(rest) < 6 {
		return URI{}, newErr(ErrInvalidStructure, "gh uri must be os://src/gh/<owner>/<repo>/ref/<ref>/path/<path...>")
	}
	if rest[2] != "ref" || rest[4] != "path" {
		return URI{}, newErr(ErrInvalidStructure, "gh uri must contain /ref/<ref>/path/<path...>")
	}
	if err := validateOwnerRepo(rest[0]); err != nil {
		return URI{}, err
	}
	if err := validateOwnerRepo(rest[1]); err != nil {
		return URI{}, err
	}
	ref, err := decodeRef(rest[3])
	if err != nil {
		return URI{}, err
	}
	path, err := decodePath(rest[5:])
	if err != nil {
		return URI{}, err
	}
	return URI{Kind: KindGh, Owner: rest[0], Repo: rest[1], Ref: ref, Path: path}, nil
}

func parseGl(rest []string) (URI, error) {
	if len(rest) < 5 {
		return URI{}, newErr(ErrInvalidStructure, "gl uri must be os://src/gl/<project_b64>/ref/<ref>/path/<path...>")
	}
	if rest[1] != "ref" || rest[3] != "path" {
		return URI{}, newErr(ErrInvalidStructure, "gl uri must contain /ref/<ref>/path/<path...>")
	}
	project, err := decodeB64(rest[0])
	if err != nil {
		return URI{}, err
	}
	ref, err := decodeRef(rest[2])
	if err != nil {
		return URI{}, err
	}
	path, err := decodePath(rest[4:])
	if err != nil {
		return URI{}, err
	}
	return URI{Kind: KindGl, Project: project, Ref: ref, Path: path}, nil
}

func parseGit(rest []string) (URI, error) {
	if len(rest) < 5 {
		return URI{}, newErr(ErrInvalidStructure, "git uri must be os://src/git/<remote_b64>/ref/<ref>/path/<path...>")
	}
	if rest[1] != "ref" || rest[3] != "path" {
		return URI{}, newErr(ErrInvalidStructure, "git uri must contain /ref/<ref>/path/<path...>")
	}
	remote, err := decodeB64(rest[0])
	if err != nil {
		return URI{}, err
	}
	ref, err := decodeRef(rest[2])
	if err != nil {
		return URI{}, err
	}
	path, err := decodePath(rest[4:])
	if err != nil {
		return URI{}, err
	}
	return URI{Kind: KindGit, Remote: remote, Ref: ref, Path: path}, nil
}

var hexDigit = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

func validateSHA256(hash string) error {
	if !hexDigit.MatchString(hash) {
		return newErr(ErrInvalidHash, "invalid sha256: %s", hash)
	}
	return nil
}

var ownerRepoRe = regexp.MustCompile(`^[A-Za-z0-9._-]{1,200}$`)

func validateOwnerRepo(value string) error {
	if !ownerRepoRe.MatchString(value) {
		return newErr(ErrInvalidStructure, "invalid owner/repo segment: %s", value)
	}
	return nil
}

// encodeComponent percent-encodes everything outside the unreserved set
// (ALPHA / DIGIT / "-" / "." / "_" / "~"), matching the Rust urlencoding
// crate's default `encode` so the wire format stays byte-identical across
// implementations.
func encodeComponent(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' ||
			c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func decodeComponent(s string) (string, error) {
	return url.PathUnescape(s)
}

func encodeRef(value string) string { return encodeComponent(value) }

func decodeRef(encoded string) (string, error) {
	decoded, err := decodeComponent(encoded)
	if err != nil {
		return "", newErr(ErrInvalidRefEncoding, "invalid ref encoding: %s", encoded)
	}
	trimmed := strings.TrimSpace(decoded)
	if trimmed == "" {
		return "", newErr(ErrInvalidRefEncoding, "invalid ref encoding: %s", encoded)
	}
	return trimmed, nil
}

func encodePath(path string) string {
	segments := strings.Split(path, "/")
	encoded := make([]string, len(segments))
	for i, seg := range segments {
		encoded[i] = encodeComponent(seg)
	}
	return strings.Join(encoded, "/")
}

func decodePath(segments []string) (string, error) {
	if len(segments) == 0 {
		return "", newErr(ErrInvalidStructure, "path segment is required")
	}
	out := make([]string, 0, len(segments))
	for _, encoded := range segments {
		decoded, err := decodeComponent(encoded)
		if err != nil {
			return "", newErr(ErrInvalidPathEncoding, "invalid path encoding: %s", encoded)
		}
		segment := strings.TrimSpace(decoded)
		if segment == "" || strings.Contains(segment, `\`) {
			return "", newErr(ErrInvalidPathEncoding, "invalid path encoding: %s", encoded)
		}
		for _, part := range strings.Split(segment, "/") {
			if part == "" || part == "." || part == ".." {
				return "", newErr(ErrInvalidPathEncoding, "invalid path encoding: %s", encoded)
			}
		}
		out = append(out, segment)
	}
	return strings.Join(out, "/"), nil
}

func encodeB64(value string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(value))
}

func decodeB64(value string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return "", newErr(ErrInvalidBase64, "invalid base64url segment: %s", value)
	}
	if !isValidUTF8(raw) {
		return "", newErr(ErrInvalidBase64, "invalid base64url segment: %s", value)
	}
	return string(raw), nil
}

func isValidUTF8(b []byte) bool {
	return strings.ToValidUTF8(string(b), "�") == string(b)
}

func splitNonEmpty(value string) []string {
	parts := strings.Split(value, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
