package internal

import (
	"io"

	"go.uber.org/zap"
)

// chunkReader returns one chunk per Read, then EOF.
type chunkReader struct {
	chunks []string
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if r.chunks[0] == "" {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func zapNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
