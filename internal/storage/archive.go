package storage

import (
	"context"
	"fmt"
	"path"

	"github.com/klauspost/compress/zstd"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Talk logs are archived zstd-compressed under
// logs/{lineUserID}/{messageID}.txt.zst.
const logContentType = "application/zstd"

// Shared coder instances; EncodeAll and DecodeAll are safe for concurrent use.
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// LogKey returns the object key for an archived talk log.
func LogKey(lineUserID, messageID string) string {
	return path.Join("logs", lineUserID, messageID+".txt.zst")
}

// ArchiveLog compresses a raw talk export and stores it. It returns the key
// it was written under.
func (s *S3Storage) ArchiveLog(ctx context.Context, lineUserID, messageID string, raw []byte) (string, error) {
	key := LogKey(lineUserID, messageID)
	ctx, span := tracer.Start(ctx, "storage.archive_log",
		trace.WithAttributes(
			attribute.String("line.user_id", lineUserID),
			attribute.String("line.message_id", messageID),
			attribute.Int("log.raw_size", len(raw)),
		))
	defer span.End()

	compressed := compress(raw)
	span.SetAttributes(attribute.Int("log.compressed_size", len(compressed)))

	if err := s.Upload(ctx, key, compressed, logContentType); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return key, nil
}

// LoadLog fetches and decompresses a talk log written by ArchiveLog.
func (s *S3Storage) LoadLog(ctx context.Context, key string) ([]byte, error) {
	data, err := s.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	raw, err := decompress(data)
	if err != nil {
		return nil, fmt.Errorf("load log %s: %w", key, err)
	}
	return raw, nil
}

func compress(raw []byte) []byte {
	return encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2))
}

func decompress(data []byte) ([]byte, error) {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return raw, nil
}
