package backup

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the ISO-8601 form used in artifacts and file names
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ArtifactMeta carries the schedule facts an artifact is stamped with
type ArtifactMeta struct {
	CreatedAt time.Time
	Owner     string
	Module    string
}

// Artifact is the serialized backup document
type Artifact struct {
	Version    string           `json:"version"`
	CreatedAt  string           `json:"created_at"`
	CreatedBy  string           `json:"created_by"`
	BackupType string           `json:"backup_type"`
	ModuleName *string          `json:"module_name"`
	Tables     []string         `json:"tables"`
	Manifest   orderedCounts    `json:"manifest"`
	Data       orderedTableRows `json:"data"`
}

// AssembledArtifact is an artifact plus the figures the ledger needs
type AssembledArtifact struct {
	Artifact     *Artifact
	Manifest     map[string]int
	TotalRecords int
	Payload      []byte
	SizeBytes    int64
	CreatedAt    time.Time
}

// Assembler builds artifacts from extracted table data
type Assembler struct{}

// NewAssembler creates an assembler
func NewAssembler() *Assembler {
	return &Assembler{}
}

// OwnerOrNil returns owner, or the all-zero UUID when owner is empty
func OwnerOrNil(owner string) string {
	if owner == "" {
		return uuid.Nil.String()
	}
	return owner
}

// Assemble builds the artifact for tables. Tables missing from data are recorded as empty.
func (a *Assembler) Assemble(meta ArtifactMeta, tables []string, data map[string][]Row) (*AssembledArtifact, error) {
	createdAt := meta.CreatedAt.UTC()

	manifest := make(map[string]int, len(tables))
	rows := make(map[string][]Row, len(tables))
	total := 0
	for _, t := range tables {
		r := data[t]
		if r == nil {
			r = []Row{}
		}
		rows[t] = r
		manifest[t] = len(r)
		total += len(r)
	}

	var module *string
	if meta.Module != "" {
		m := meta.Module
		module = &m
	}

	ordered := append([]string(nil), tables...)
	artifact := &Artifact{
		Version:    ArtifactVersion,
		CreatedAt:  createdAt.Format(TimestampLayout),
		CreatedBy:  OwnerOrNil(meta.Owner),
		BackupType: BackupTypeScheduled,
		ModuleName: module,
		Tables:     ordered,
		Manifest:   orderedCounts{keys: ordered, values: manifest},
		Data:       orderedTableRows{keys: ordered, values: rows},
	}

	payload, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return nil, NewAssemblyError("failed to serialize artifact", err)
	}

	return &AssembledArtifact{
		Artifact:     artifact,
		Manifest:     manifest,
		TotalRecords: total,
		Payload:      payload,
		SizeBytes:    int64(len(payload)),
		CreatedAt:    createdAt,
	}, nil
}

// orderedCounts encodes a manifest with keys in table order
type orderedCounts struct {
	keys   []string
	values map[string]int
}

func (o orderedCounts) MarshalJSON() ([]byte, error) {
	return marshalOrdered(o.keys, func(k string) any { return o.values[k] })
}

// orderedTableRows encodes table data with keys in table order
type orderedTableRows struct {
	keys   []string
	values map[string][]Row
}

func (o orderedTableRows) MarshalJSON() ([]byte, error) {
	return marshalOrdered(o.keys, func(k string) any { return o.values[k] })
}

func marshalOrdered(keys []string, value func(string) any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	seen := make(map[string]struct{}, len(keys))
	first := true
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if !first {
			buf.WriteByte(',')
		}
		first = false

		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(value(k))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
