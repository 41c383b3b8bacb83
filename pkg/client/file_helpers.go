package client

import (
	"context"
	"io"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/cirrus-project/cirrus/pkg/transfer"
)

// UploadFile uploads a local file to remotePath. The file size is declared
// up front so progress reporters see a total.
func (c *Client) UploadFile(ctx context.Context, fs afero.Fs, localPath, remotePath string, opts ...UploadOption) (transfer.UploadResult, error) {
	file, err := fs.Open(localPath)
	if err != nil {
		return transfer.UploadResult{}, errors.Wrapf(err, "open %s", localPath)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return transfer.UploadResult{}, errors.Wrapf(err, "stat %s", localPath)
	}
	opts = append([]UploadOption{WithTotalSize(uint64(info.Size()))}, opts...)

	writer, err := c.NewWriter(ctx, remotePath, opts...)
	if err != nil {
		return transfer.UploadResult{}, err
	}

	_, copyErr := io.Copy(writer, file)
	result, finErr := writer.Finalize()
	if copyErr != nil || finErr != nil {
		var merr *multierror.Error
		merr = multierror.Append(merr, copyErr, finErr)
		return result, errors.Wrapf(merr.ErrorOrNil(), "upload %s to %s", localPath, remotePath)
	}
	return result, nil
}

// DownloadFile downloads a remote object to localPath, creating parent
// directories as needed.
func (c *Client) DownloadFile(ctx context.Context, fs afero.Fs, remotePath, localPath string, opts ...DownloadOption) error {
	reader, err := c.NewReader(ctx, remotePath, opts...)
	if err != nil {
		return err
	}
	defer reader.Close()

	if dir := filepath.Dir(localPath); dir != "" && dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create directory %s", dir)
		}
	}
	file, err := fs.Create(localPath)
	if err != nil {
		return errors.Wrapf(err, "create %s", localPath)
	}

	_, copyErr := io.Copy(file, reader)
	closeErr := file.Close()
	if copyErr != nil || closeErr != nil {
		var merr *multierror.Error
		merr = multierror.Append(merr, copyErr, closeErr)
		return errors.Wrapf(merr.ErrorOrNil(), "download %s to %s", remotePath, localPath)
	}
	return nil
}
