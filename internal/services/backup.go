package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/ballotkeeper/internal/backup"
	"github.com/dmitrijs2005/ballotkeeper/internal/common"
	"github.com/dmitrijs2005/ballotkeeper/internal/logging"
	"github.com/dmitrijs2005/ballotkeeper/internal/store"
)

// BackupService exports and restores the whole store.
type BackupService interface {
	// Export writes a backup to loc; a non-empty passphrase encrypts it.
	Export(ctx context.Context, loc string, passphrase []byte) (*backup.Info, error)
	// Import restores the backup at loc, replacing every collection it holds.
	Import(ctx context.Context, loc string, passphrase []byte) (*backup.Info, *store.ImportReport, error)
	// Presign returns a temporary download URL for an S3 backup.
	Presign(ctx context.Context, loc string, ttl time.Duration) (string, error)
}

type backupService struct {
	store  *store.DocumentStore
	reader *CachedReader
	s3     backup.S3Config
	log    logging.Logger
	now    func() time.Time
}

func NewBackupService(ds *store.DocumentStore, reader *CachedReader, s3 backup.S3Config, log logging.Logger) BackupService {
	return &backupService{store: ds, reader: reader, s3: s3, log: log, now: time.Now}
}

func (b *backupService) Export(ctx context.Context, loc string, passphrase []byte) (*backup.Info, error) {
	dest, err := backup.ParseLocation(loc, b.s3)
	if err != nil {
		return nil, err
	}

	snap, err := b.store.ExportAll(ctx)
	if err != nil {
		return nil, err
	}
	bk, err := backup.New(snap, b.now())
	if err != nil {
		return nil, err
	}
	data, err := bk.Marshal()
	if err != nil {
		return nil, common.Storagef(err, "encode backup")
	}
	if len(passphrase) > 0 {
		if data, err = backup.Encrypt(data, passphrase); err != nil {
			return nil, err
		}
	}

	if err := dest.Write(ctx, data); err != nil {
		return nil, err
	}
	b.log.Info(ctx, "backup exported", "destination", dest.String(), "id", bk.Info.ID,
		"documents", bk.Info.TotalDocuments, "encrypted", len(passphrase) > 0)
	return bk.Info, nil
}

func (b *backupService) Import(ctx context.Context, loc string, passphrase []byte) (*backup.Info, *store.ImportReport, error) {
	src, err := backup.ParseLocation(loc, b.s3)
	if err != nil {
		return nil, nil, err
	}
	raw, err := src.Read(ctx)
	if err != nil {
		return nil, nil, err
	}
	plain, err := backup.Decrypt(raw, passphrase)
	if err != nil {
		return nil, nil, err
	}
	bk, err := backup.Parse(plain)
	if err != nil {
		return nil, nil, err
	}

	report, err := b.store.ImportAll(ctx, bk.Data)
	// some collections may have been replaced even on error
	b.reader.Cache().Purge()
	if err != nil {
		return bk.Info, report, err
	}
	b.log.Info(ctx, "backup restored", "source", src.String(), "id", bk.Info.ID, "documents", bk.Info.TotalDocuments)
	return bk.Info, report, nil
}

func (b *backupService) Presign(ctx context.Context, loc string, ttl time.Duration) (string, error) {
	dest, err := backup.ParseLocation(loc, b.s3)
	if err != nil {
		return "", err
	}
	s3dest, ok := dest.(*backup.S3Destination)
	if !ok {
		return "", common.Validationf("only s3:// locations can be presigned")
	}
	return s3dest.Presign(ctx, ttl)
}
