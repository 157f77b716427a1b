package blobstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	magic      = 0xffff
	headerSize = 12
	recordSize = 16
)

// ErrBadHeader is returned when data does not start with a blob store header.
var ErrBadHeader = errors.New("bad header")

// Kind identifies what a blob holds. Values are four character codes so the
// container stays readable in a hex dump.
type Kind uint32

const (
	KindVoice      Kind = 0x766f6963 // 'voic'
	KindImage      Kind = 0x696d6167 // 'imag'
	KindIntro      Kind = 0x696e7472 // 'intr'
	KindBackground Kind = 0x62676d73 // 'bgms'
	KindSpawn      Kind = 0x7370776e // 'spwn'
	KindDespawn    Kind = 0x6473706e // 'dspn'
	KindSFX        Kind = 0x73667820 // 'sfx '
	KindFont       Kind = 0x666f6e74 // 'font'
)

func (k Kind) String() string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(k))
	return strings.TrimSpace(string(b[:]))
}

// Key addresses one blob: what it is, which character (or "site") owns it,
// and the file name it was imported under.
type Key struct {
	Kind  Kind
	Owner string
	Name  string
}

func (k Key) String() string {
	return k.Owner + "_" + k.Kind.String() + "_" + k.Name
}

// Entry is a single record of the container.
type Entry struct {
	Key  Key
	Data []byte
}

// parse reads container data and returns all entries in file order.
func parse(data []byte) ([]Entry, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("short header: %w", ErrBadHeader)
	}
	if binary.BigEndian.Uint16(data[0:2]) != magic {
		return nil, ErrBadHeader
	}
	n := int(binary.BigEndian.Uint32(data[2:6]))
	table := data[headerSize:]
	if n < 0 || len(table) < n*recordSize {
		return nil, fmt.Errorf("short table")
	}
	entries := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		off := uint64(binary.BigEndian.Uint32(table[0:4]))
		size := uint64(binary.BigEndian.Uint32(table[4:8]))
		kind := Kind(binary.BigEndian.Uint32(table[8:12]))
		keyLen := uint64(binary.BigEndian.Uint32(table[12:16]))
		if off+keyLen+size > uint64(len(data)) {
			return nil, fmt.Errorf("entry %d out of range", i)
		}
		owner, name, ok := strings.Cut(string(data[off:off+keyLen]), "\x00")
		if !ok {
			return nil, fmt.Errorf("entry %d has malformed key", i)
		}
		// copy data slice so modifications do not affect original
		b := make([]byte, size)
		copy(b, data[off+keyLen:off+keyLen+size])
		entries = append(entries, Entry{Key: Key{Kind: kind, Owner: owner, Name: name}, Data: b})
		table = table[recordSize:]
	}
	return entries, nil
}

// Build assembles a container from the provided entries.
func Build(entries []Entry) []byte {
	n := len(entries)
	header := make([]byte, headerSize+recordSize*n)
	binary.BigEndian.PutUint16(header[0:2], magic)
	binary.BigEndian.PutUint32(header[2:6], uint32(n))
	off := uint32(len(header))
	total := len(header)
	for i, e := range entries {
		key := e.Key.Owner + "\x00" + e.Key.Name
		rec := header[headerSize+recordSize*i:]
		binary.BigEndian.PutUint32(rec[0:4], off)
		binary.BigEndian.PutUint32(rec[4:8], uint32(len(e.Data)))
		binary.BigEndian.PutUint32(rec[8:12], uint32(e.Key.Kind))
		binary.BigEndian.PutUint32(rec[12:16], uint32(len(key)))
		off += uint32(len(key) + len(e.Data))
		total += len(key) + len(e.Data)
	}
	buf := make([]byte, 0, total)
	buf = append(buf, header...)
	for _, e := range entries {
		buf = append(buf, e.Key.Owner...)
		buf = append(buf, 0)
		buf = append(buf, e.Key.Name...)
		buf = append(buf, e.Data...)
	}
	return buf
}

// Merge overlays patch entries onto base and returns the merged container.
// Base order is kept; patch entries override matching keys and new ones are
// appended.
func Merge(base, patch []byte) ([]byte, error) {
	baseEntries, err := parse(base)
	if err != nil {
		return nil, err
	}
	patchEntries, err := parse(patch)
	if err != nil {
		return nil, err
	}
	return Build(mergeEntries(baseEntries, patchEntries)), nil
}

func mergeEntries(baseEntries, patchEntries []Entry) []Entry {
	m := make(map[Key]Entry, len(baseEntries)+len(patchEntries))
	for _, e := range baseEntries {
		m[e.Key] = e
	}
	for _, e := range patchEntries {
		m[e.Key] = e
	}
	final := make([]Entry, 0, len(m))
	for _, list := range [][]Entry{baseEntries, patchEntries} {
		for _, e := range list {
			if ne, ok := m[e.Key]; ok {
				final = append(final, ne)
				delete(m, e.Key)
			}
		}
	}
	return final
}
