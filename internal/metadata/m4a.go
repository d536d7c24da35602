package metadata

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// durationM4A reads timescale and duration from the moov/mvhd box
func durationM4A(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	moovSize, err := findBox(f, "moov", -1)
	if err != nil {
		return 0, err
	}
	if _, err := findBox(f, "mvhd", moovSize); err != nil {
		return 0, err
	}

	var version [4]byte // version + flags
	if _, err := io.ReadFull(f, version[:]); err != nil {
		return 0, err
	}

	var timescale uint32
	var units uint64
	if version[0] == 1 {
		var hdr struct {
			Created, Modified uint64
			Timescale         uint32
			Duration          uint64
		}
		if err := binary.Read(f, binary.BigEndian, &hdr); err != nil {
			return 0, err
		}
		timescale, units = hdr.Timescale, hdr.Duration
	} else {
		var hdr struct {
			Created, Modified uint32
			Timescale         uint32
			Duration          uint32
		}
		if err := binary.Read(f, binary.BigEndian, &hdr); err != nil {
			return 0, err
		}
		timescale, units = hdr.Timescale, uint64(hdr.Duration)
	}

	if timescale == 0 {
		return 0, errors.New("invalid mvhd timescale")
	}
	return roundSeconds(float64(units) / float64(timescale)), nil
}

// findBox advances r to the payload of the first box named name within the
// next limit bytes (limit < 0 means until EOF) and returns the payload size.
func findBox(r io.ReadSeeker, name string, limit int64) (int64, error) {
	var consumed int64
	for limit < 0 || consumed < limit {
		var head [8]byte
		if _, err := io.ReadFull(r, head[:]); err != nil {
			return 0, fmt.Errorf("box %s not found: %w", name, err)
		}
		size := int64(binary.BigEndian.Uint32(head[:4]))
		if size < 8 {
			return 0, fmt.Errorf("invalid box size %d", size)
		}
		if string(head[4:]) == name {
			return size - 8, nil
		}
		if _, err := r.Seek(size-8, io.SeekCurrent); err != nil {
			return 0, err
		}
		consumed += size
	}
	return 0, fmt.Errorf("box %s not found", name)
}
