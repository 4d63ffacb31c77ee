// Package usbid resolves vendor, product and class codes to names using the
// usb.ids database shipped with usbutils.
package usbid

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
)

// DefaultPaths lists the standard locations of usb.ids.
var DefaultPaths = []string{
	"/usr/share/hwdata/usb.ids",
	"/var/lib/usbutils/usb.ids",
	"/usr/share/misc/usb.ids",
}

// builtin covers the codes this project reports even without a database.
const builtin = `1a86  QinHeng Electronics
	fe07  CH643 Keyboard & Mouse
	fe0c  CH643 Virtual COM Port
C 00  (Defined at Interface level)
C 02  Communications
C 03  Human Interface Device
C 08  Mass Storage
C 09  Hub
C 0a  CDC Data
C ef  Miscellaneous Device
C ff  Vendor Specific Class
`

// Database holds vendor, product and class names.
type Database struct {
	mu       sync.RWMutex
	vendors  map[uint16]string
	products map[uint32]string // vid<<16 | pid
	classes  map[uint8]string
	source   string
}

// New returns a database holding only the built-in names.
func New() *Database {
	db := &Database{
		vendors:  make(map[uint16]string),
		products: make(map[uint32]string),
		classes:  make(map[uint8]string),
		source:   "builtin",
	}
	_ = db.Parse(strings.NewReader(builtin))
	return db
}

// Open returns a database extended with the first readable file in paths,
// or DefaultPaths when paths is empty. A missing database is not an error:
// the built-in names remain available.
func Open(paths ...string) (*Database, error) {
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	db := New()
	for _, path := range paths {
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return db, fmt.Errorf("open usb.ids: %w", err)
		}
		defer f.Close()
		if err := db.Parse(f); err != nil {
			return db, fmt.Errorf("parse %s: %w", path, err)
		}
		db.mu.Lock()
		db.source = path
		db.mu.Unlock()
		break
	}
	return db, nil
}

// Parse merges usb.ids formatted data into the database. Vendor lines are
// "vvvv  name", product lines "\tpppp  name" and class lines "C cc  name".
// Subclass, interface and other sections are skipped.
func (db *Database) Parse(r io.Reader) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var vid uint16
	inVendor := false
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == '#' {
			continue
		}

		switch {
		case line[0] == '\t':
			if !inVendor || strings.HasPrefix(line, "\t\t") {
				continue
			}
			if id, name, ok := split(line[1:], 4); ok {
				db.products[uint32(vid)<<16|uint32(id)] = name
			}

		case strings.HasPrefix(line, "C "):
			inVendor = false
			if id, name, ok := split(line[2:], 2); ok {
				db.classes[uint8(id)] = name
			}

		default:
			id, name, ok := split(line, 4)
			inVendor = ok
			if ok {
				vid = uint16(id)
				db.vendors[vid] = name
			}
		}
	}
	return scanner.Err()
}

// split parses a "hex  name" entry with a hex field of the given width.
func split(s string, width int) (uint64, string, bool) {
	if len(s) < width+2 || s[width] != ' ' {
		return 0, "", false
	}
	id, err := strconv.ParseUint(s[:width], 16, width*4)
	if err != nil {
		return 0, "", false
	}
	name := strings.TrimSpace(s[width:])
	return id, name, name != ""
}

// Vendor returns the vendor name of vid, or "".
func (db *Database) Vendor(vid uint16) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.vendors[vid]
}

// Product returns the product name of vid:pid, or "".
func (db *Database) Product(vid, pid uint16) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.products[uint32(vid)<<16|uint32(pid)]
}

// Class returns the name of a device or interface class code, or "".
func (db *Database) Class(code uint8) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.classes[code]
}

// Source returns the file the database was loaded from, or "builtin".
func (db *Database) Source() string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.source
}

// Describe formats vid:pid the way lsusb does, e.g.
// "1a86:fe0c QinHeng Electronics CH643 Virtual COM Port".
func (db *Database) Describe(vid, pid uint16) string {
	s := fmt.Sprintf("%04x:%04x", vid, pid)
	if v := db.Vendor(vid); v != "" {
		s += " " + v
	}
	if p := db.Product(vid, pid); p != "" {
		s += " " + p
	}
	return s
}
