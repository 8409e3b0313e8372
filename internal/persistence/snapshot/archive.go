package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

const archiveSuffix = ".ledger.json.zst"

// ArchivePath names the archive for a save taken at t.
func ArchivePath(dir string, t time.Time) string {
	return filepath.Join(dir, strconv.FormatInt(t.UnixNano(), 10)+archiveSuffix)
}

// WriteArchive stores a zstd-compressed copy of doc under dir.
func WriteArchive(dir string, doc LedgerV1, t time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := ArchivePath(dir, t)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return "", err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)
	if err := json.NewEncoder(bw).Encode(doc); err != nil {
		_ = enc.Close()
		return "", fmt.Errorf("archive encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return path, f.Close()
}

// ReadArchive loads a compressed ledger archive.
func ReadArchive(path string) (LedgerV1, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var doc LedgerV1
	if err := json.NewDecoder(bufio.NewReader(dec)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("archive decode: %w", err)
	}
	if doc == nil {
		doc = LedgerV1{}
	}
	return doc, nil
}

// ListArchives returns archive paths under dir, oldest first.
func ListArchives(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	type named struct {
		path string
		ns   int64
	}
	var out []named
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, archiveSuffix) {
			continue
		}
		ns, err := strconv.ParseInt(strings.TrimSuffix(name, archiveSuffix), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, named{path: filepath.Join(dir, name), ns: ns})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ns < out[j].ns })
	paths := make([]string, len(out))
	for i, n := range out {
		paths[i] = n.path
	}
	return paths, nil
}

// PruneArchives keeps the newest keep archives and removes the rest.
// keep <= 0 keeps everything.
func PruneArchives(dir string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	paths, err := ListArchives(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for len(paths)-removed > keep {
		if err := os.Remove(paths[removed]); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
