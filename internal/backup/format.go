// Package backup defines the backup file format and where backups are
// written: local files, S3 objects or presigned URLs. Backups may be
// wrapped in a passphrase-encrypted envelope.
package backup

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
	"github.com/dmitrijs2005/ballotkeeper/internal/models"
	"github.com/dmitrijs2005/ballotkeeper/internal/store"
)

const (
	FormatVersion = "1"
	TypeFull      = "full"
)

// Info describes a backup.
type Info struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Size           int       `json:"size"`
	Databases      []string  `json:"databases"`
	TotalDocuments int       `json:"totalDocuments"`
	Type           string    `json:"type"`
	Version        string    `json:"version"`
}

// Backup is the decoded backup file.
type Backup struct {
	Info *Info          `json:"info"`
	Data store.Snapshot `json:"data"`
}

// New wraps snap with a fresh Info. Size is the byte length of the encoded
// data section.
func New(snap store.Snapshot, now time.Time) (*Backup, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, common.Storagef(err, "encode snapshot")
	}

	names := make([]string, 0, len(snap))
	for _, c := range snap.Names() {
		names = append(names, string(c))
	}

	return &Backup{
		Info: &Info{
			ID:             uuid.NewString(),
			Timestamp:      now.UTC(),
			Size:           len(data),
			Databases:      names,
			TotalDocuments: snap.Total(),
			Type:           TypeFull,
			Version:        FormatVersion,
		},
		Data: snap,
	}, nil
}

// Marshal encodes b as indented JSON.
func (b *Backup) Marshal() ([]byte, error) {
	return json.MarshalIndent(b, "", "  ")
}

// Parse decodes a plain backup file. Both the info and the data sections
// must be present; collections must be known.
func Parse(raw []byte) (*Backup, error) {
	var b Backup
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&b); err != nil {
		return nil, common.Validationf("decode backup: %v", err)
	}
	if b.Info == nil {
		return nil, common.Validationf("backup has no info section")
	}
	if b.Data == nil {
		return nil, common.Validationf("backup has no data section")
	}
	for c := range b.Data {
		if _, err := models.ParseCollection(string(c)); err != nil {
			return nil, err
		}
	}
	return &b, nil
}
