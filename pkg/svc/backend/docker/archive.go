package docker

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const pullDirPerm = 0o750

// archiveForPush builds the tar stream CopyToContainer expects and returns the
// container directory it must be extracted into.
func archiveForPush(localPath, remotePath string, recursive bool) (io.Reader, string, error) {
	var buf bytes.Buffer

	tarWriter := tar.NewWriter(&buf)

	var (
		dir string
		err error
	)

	if recursive {
		dir = remotePath
		err = addTree(tarWriter, localPath)
	} else {
		dir = path.Dir(remotePath)
		err = addFile(tarWriter, localPath, path.Base(remotePath))
	}

	if err != nil {
		return nil, "", err
	}

	err = tarWriter.Close()
	if err != nil {
		return nil, "", fmt.Errorf("close archive: %w", err)
	}

	return &buf, dir, nil
}

func addTree(tarWriter *tar.Writer, root string) error {
	err := filepath.WalkDir(root, func(current string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, current)
		if err != nil || rel == "." {
			return err
		}

		name := filepath.ToSlash(rel)

		if entry.IsDir() {
			info, err := entry.Info()
			if err != nil {
				return err
			}

			header, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}

			header.Name = name + "/"

			return tarWriter.WriteHeader(header)
		}

		return addFile(tarWriter, current, name)
	})
	if err != nil {
		return fmt.Errorf("archive %s: %w", root, err)
	}

	return nil
}

func addFile(tarWriter *tar.Writer, source, name string) error {
	file, err := os.Open(source) //nolint:gosec // paths come from the operator's catalog
	if err != nil {
		return fmt.Errorf("open %s: %w", source, err)
	}

	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", source, err)
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("archive header for %s: %w", source, err)
	}

	header.Name = name

	err = tarWriter.WriteHeader(header)
	if err != nil {
		return fmt.Errorf("write archive header for %s: %w", source, err)
	}

	_, err = io.Copy(tarWriter, file)
	if err != nil {
		return fmt.Errorf("archive %s: %w", source, err)
	}

	return nil
}

// extractArchive writes a CopyFromContainer stream to target. The stream's
// first path component is the copied file or directory itself and maps to target.
func extractArchive(reader io.Reader, target string) error {
	tarReader := tar.NewReader(reader)

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}

		destination, err := entryPath(target, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			err = os.MkdirAll(destination, pullDirPerm)
		case tar.TypeReg:
			err = writeEntry(destination, tarReader, header.FileInfo().Mode().Perm())
		default:
			continue
		}

		if err != nil {
			return err
		}
	}
}

func entryPath(target, name string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(name, "/"))

	_, rest, _ := strings.Cut(clean, "/")
	if rest == "" {
		return target, nil
	}

	destination := filepath.Join(target, filepath.FromSlash(rest))

	rel, err := filepath.Rel(target, destination)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeArchivePath, name)
	}

	return destination, nil
}

func writeEntry(destination string, content io.Reader, mode fs.FileMode) error {
	err := os.MkdirAll(filepath.Dir(destination), pullDirPerm)
	if err != nil {
		return fmt.Errorf("create directory for %s: %w", destination, err)
	}

	file, err := os.OpenFile(destination, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode|0o200) //nolint:gosec // extracted below target
	if err != nil {
		return fmt.Errorf("create %s: %w", destination, err)
	}

	defer func() { _ = file.Close() }()

	_, err = io.Copy(file, content) //nolint:gosec // log files from nodes the operator owns
	if err != nil {
		return fmt.Errorf("write %s: %w", destination, err)
	}

	return nil
}
