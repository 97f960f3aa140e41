package materialize

import (
	"bytes"
	"context"

	"github.com/meigma/archiver/internal/ioutil"
)

// Buffer runs produce to completion and returns the archive bytes.
func Buffer(ctx context.Context, produce Producer) (*Result, error) {
	var buf bytes.Buffer
	dw := ioutil.NewDigestWriter(&buf)
	if err := produce(ctx, dw); err != nil {
		return nil, err
	}
	return &Result{
		Bytes:  buf.Bytes(),
		Digest: dw.Digest(),
		Size:   dw.Size(),
	}, nil
}
