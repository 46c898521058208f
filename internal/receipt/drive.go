package receipt

import (
	"bytes"
	"context"
	"fmt"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Drive uploads receipts into one folder with a service account.
type Drive struct {
	files    *drive.FilesService
	folderID string
}

// NewDrive opens the Drive API with the service-account credentials file.
func NewDrive(ctx context.Context, credentialsFile, folderID string) (*Drive, error) {
	svc, err := drive.NewService(ctx, option.WithCredentialsFile(credentialsFile), option.WithScopes(drive.DriveFileScope))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Drive{files: svc.Files, folderID: folderID}, nil
}

// Upload stores pdf as name and returns the Drive file id. A file already
// holding that name in the folder is replaced.
func (d *Drive) Upload(ctx context.Context, name string, pdf []byte) (string, error) {
	q := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false", escapeQuery(name), escapeQuery(d.folderID))
	list, err := d.files.List().Q(q).Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("search archive: %w", err)
	}
	if len(list.Files) > 0 {
		f, err := d.files.Update(list.Files[0].Id, &drive.File{}).
			Media(bytes.NewReader(pdf)).Fields("id").Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("replace archived receipt: %w", err)
		}
		return f.Id, nil
	}
	f, err := d.files.Create(&drive.File{
		Name:     name,
		MimeType: "application/pdf",
		Parents:  []string{d.folderID},
	}).Media(bytes.NewReader(pdf)).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("archive receipt: %w", err)
	}
	return f.Id, nil
}

func escapeQuery(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		if r == '\'' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
