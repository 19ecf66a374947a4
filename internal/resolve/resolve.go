// Package resolve maps require() requests to files on the host file system.
package resolve

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultExtensions is used when no extension list is configured.
var DefaultExtensions = []string{".js"}

// FileSystem is the read-only view of the host file system the bundler uses.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
	Stat(name string) (fs.FileInfo, error)
}

// OS is the FileSystem backed by the operating system.
type OS struct{}

// ReadFile implements FileSystem.
func (OS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// Stat implements FileSystem.
func (OS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

// ResolutionError is returned when a request matches no file.
type ResolutionError struct {
	// Request is the string passed to require().
	Request string

	// From is the file containing the request.
	From string

	// Path is the joined path that was tried, before any extension.
	Path string

	// Tried lists every path checked, in order.
	Tried []string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %q from %s: %s not found", e.Request, e.From, e.Path)
}

// Resolver resolves requests relative to the requesting file.
type Resolver struct {
	// FS is the file system to search. Defaults to OS.
	FS FileSystem

	// Extensions are appended, in order, when the exact path does not exist.
	// A nil slice means DefaultExtensions.
	Extensions []string
}

// New creates a resolver over fsys with the given extension list.
func New(fsys FileSystem, extensions []string) *Resolver {
	return &Resolver{FS: fsys, Extensions: extensions}
}

// Resolve resolves request from the file from on the host file system.
func Resolve(from, request string, extensions []string) (string, error) {
	return New(OS{}, extensions).Resolve(from, request)
}

// Resolve joins the directory of from with request and returns the first
// existing file among the exact joined path and the joined path with each
// extension appended. Directories never match; there is no index-file lookup.
func (r *Resolver) Resolve(from, request string) (string, error) {
	fsys := r.FS
	if fsys == nil {
		fsys = OS{}
	}
	extensions := r.Extensions
	if extensions == nil {
		extensions = DefaultExtensions
	}

	joined := filepath.Join(filepath.Dir(from), filepath.FromSlash(request))
	tried := make([]string, 0, len(extensions)+1)

	candidates := append([]string{joined}, withExtensions(joined, extensions)...)
	for _, candidate := range candidates {
		tried = append(tried, candidate)
		if isFile(fsys, candidate) {
			return candidate, nil
		}
	}

	return "", &ResolutionError{
		Request: request,
		From:    from,
		Path:    joined,
		Tried:   tried,
	}
}

func withExtensions(path string, extensions []string) []string {
	out := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		out = append(out, path+ext)
	}
	return out
}

func isFile(fsys FileSystem, path string) bool {
	info, err := fsys.Stat(path)
	return err == nil && !info.IsDir()
}
