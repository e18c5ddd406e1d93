package capture

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"
)

// FileSource replays a recorded s16le 16kHz mono file in place of the
// microphone. A RIFF/WAVE header is skipped.
type FileSource struct {
	Path string
	// Realtime 按实际时长节流，模拟麦克风输入
	Realtime bool
}

func (s FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	if err := skipWAVHeader(f); err != nil {
		f.Close()
		return nil, err
	}
	if !s.Realtime {
		return f, nil
	}
	return &pacedReader{ctx: ctx, file: f}, nil
}

// skipWAVHeader 定位到 data 块；非 WAV 文件回到开头
func skipWAVHeader(f io.ReadSeeker) error {
	head := make([]byte, 12)
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head[:4], []byte("RIFF")) || !bytes.Equal(head[8:], []byte("WAVE")) {
		_, serr := f.Seek(0, io.SeekStart)
		return serr
	}

	for {
		var chunk struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(f, binary.LittleEndian, &chunk); err != nil {
			return fmt.Errorf("wav data chunk not found: %w", err)
		}
		if string(chunk.ID[:]) == "data" {
			return nil
		}
		// 块按偶数字节对齐
		if _, err := f.Seek(int64(chunk.Size+chunk.Size%2), io.SeekCurrent); err != nil {
			return err
		}
	}
}

// pacedReader 每 200ms 最多交付一个分片
type pacedReader struct {
	ctx  context.Context
	file *os.File
	next time.Time
}

func (r *pacedReader) Read(p []byte) (int, error) {
	if wait := time.Until(r.next); wait > 0 {
		select {
		case <-time.After(wait):
		case <-r.ctx.Done():
			return 0, r.ctx.Err()
		}
	}
	if len(p) > chunkBytes {
		p = p[:chunkBytes]
	}
	n, err := r.file.Read(p)
	r.next = time.Now().Add(time.Duration(n) * time.Second / (sampleRateHz * 2))
	return n, err
}

func (r *pacedReader) Close() error {
	return r.file.Close()
}
