package dbmongo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"collegovibe/internal/common"
	"collegovibe/internal/config"
)

// MediaStorage keeps uploaded images in GridFS. The file id doubles as the
// deletion token handed back to callers.
type MediaStorage struct {
	gridFS  *gridfs.Bucket
	baseURL string
}

func NewMediaStorage(mongoClient *MongoClient, cfg *config.Config) *MediaStorage {
	return &MediaStorage{
		gridFS:  mongoClient.GridFS,
		baseURL: cfg.Server.MediaBaseURL,
	}
}

type MediaFile struct {
	ID         string               `json:"id"`
	URL        string               `json:"url"`
	Filename   string               `json:"filename"`
	MimeType   string               `json:"mime_type"`
	Size       int64                `json:"size"`
	FileType   common.MediaFileType `json:"file_type"`
	UploadedBy string               `json:"uploaded_by"`
	UploadedAt time.Time            `json:"uploaded_at"`
}

// MediaURL joins the public media prefix and a file id.
func MediaURL(baseURL, fileID string) string {
	return strings.TrimRight(baseURL, "/") + "/" + fileID
}

func (ms *MediaStorage) UploadFile(ctx context.Context, filename, mimeType, uploaderID string, content io.Reader) (*MediaFile, error) {
	fileType := common.DetectFileType(mimeType)
	uploadedAt := time.Now().UTC()

	metadata := bson.M{
		"file_type":   fileType.String(),
		"mime_type":   mimeType,
		"uploaded_by": uploaderID,
		"uploaded_at": uploadedAt,
	}

	opts := options.GridFSUpload().SetMetadata(metadata)
	stream, err := ms.gridFS.OpenUploadStream(filename, opts)
	if err != nil {
		return nil, common.Transient("open upload stream", err)
	}

	size, err := io.Copy(stream, content)
	if err != nil {
		_ = stream.Abort()
		return nil, fmt.Errorf("file copy failed: %w", err)
	}
	if err := stream.Close(); err != nil {
		return nil, common.Transient("finalize upload", err)
	}

	id := stream.FileID.(primitive.ObjectID).Hex()
	return &MediaFile{
		ID:         id,
		URL:        MediaURL(ms.baseURL, id),
		Filename:   filename,
		MimeType:   mimeType,
		Size:       size,
		FileType:   fileType,
		UploadedBy: uploaderID,
		UploadedAt: uploadedAt,
	}, nil
}

func (ms *MediaStorage) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, *MediaFile, error) {
	objectID, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return nil, nil, common.Validationf("invalid file ID %q", fileID)
	}

	stream, err := ms.gridFS.OpenDownloadStream(objectID)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, nil, common.NotFoundf("media %s", fileID)
		}
		return nil, nil, common.Transient("open download stream", err)
	}

	fileInfo := stream.GetFile()
	var metadata bson.M
	if fileInfo.Metadata != nil {
		_ = bson.Unmarshal(fileInfo.Metadata, &metadata)
	}

	mediaFile := &MediaFile{
		ID:         fileID,
		URL:        MediaURL(ms.baseURL, fileID),
		Filename:   fileInfo.Name,
		MimeType:   getStringFromMap(metadata, "mime_type"),
		Size:       fileInfo.Length,
		FileType:   common.MediaFileType(getStringFromMap(metadata, "file_type")),
		UploadedBy: getStringFromMap(metadata, "uploaded_by"),
		UploadedAt: fileInfo.UploadDate,
	}

	return stream, mediaFile, nil
}

// DeleteFile removes a file by its deletion token. A missing file is not an error.
func (ms *MediaStorage) DeleteFile(ctx context.Context, fileID string) error {
	objectID, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return common.Validationf("invalid file ID %q", fileID)
	}
	if err := ms.gridFS.Delete(objectID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
		return common.Transient("delete media", err)
	}
	return nil
}

func getStringFromMap(m bson.M, key string) string {
	if m == nil {
		return ""
	}
	if val, ok := m[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
