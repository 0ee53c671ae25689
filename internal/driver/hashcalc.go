package driver

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"monoc/internal/hir"
	"monoc/internal/version"
)

// Digest is a SHA-256 content hash.
type Digest [32]byte

// combineDigest: H(content || dep1 || dep2 ...). deps are in a fixed order.
func combineDigest(content Digest, deps ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	for _, d := range deps {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// moduleDigest hashes the wire form of p.
func moduleDigest(p *hir.Program) (Digest, error) {
	h := sha256.New()
	if err := hir.Encode(h, &hir.Bundle{Modules: []*hir.Program{p}}); err != nil {
		return Digest{}, fmt.Errorf("hash module %s: %w", p.Name, err)
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out, nil
}

// optionsDigest covers every setting that changes the produced text.
func optionsDigest(opts *Options) Digest {
	h := sha256.New()
	var buf [8]byte
	binary.LittleEndian.PutUint16(buf[:2], cacheSchemaVersion)
	buf[2] = opts.DefaultIntWidth
	if opts.SkipRefcount {
		buf[3] = 1
	}
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(version.Version))
	_, _ = h.Write([]byte(version.GitCommit))
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// cacheKey identifies the specialization of p under opts.
func cacheKey(p *hir.Program, opts *Options) (Digest, error) {
	content, err := moduleDigest(p)
	if err != nil {
		return Digest{}, err
	}
	return combineDigest(content, optionsDigest(opts)), nil
}
