package pipeline

import (
	"fmt"
	"os"

	"github.com/backmassage/layerlapse/internal/naming"
)

// checkSession verifies the session root is a directory.
func checkSession(sess naming.Session) error {
	fi, err := os.Stat(sess.Dir)
	if err != nil {
		return fmt.Errorf("%w: session directory %s: %v", ErrInputMissing, sess.Dir, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInputMissing, sess.Dir)
	}
	return nil
}

// checkInputs verifies the log and, when needVideo is set, the recording
// exist and are non-empty regular files.
func checkInputs(sess naming.Session, needVideo bool) error {
	if err := checkFile(sess.LogPath); err != nil {
		return err
	}
	if needVideo {
		return checkFile(sess.VideoPath)
	}
	return nil
}

func checkFile(p string) error {
	fi, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInputMissing, err)
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrInputMissing, p)
	}
	if fi.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", ErrInputMissing, p)
	}
	return nil
}
