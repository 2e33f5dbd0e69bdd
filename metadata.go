package rawpreview

import (
	"fmt"
	"os/exec"

	exiftool "github.com/barasher/go-exiftool"

	"rawpreview/logging"
)

// hasExiftool reports whether the exiftool binary is on the PATH.
func hasExiftool() bool {
	_, err := exec.LookPath("exiftool")
	return err == nil
}

// readMetadata attaches exiftool's view of the file as a string map. Any
// failure, including exiftool being absent, is logged and yields nil; the
// extraction result stands on its own.
func readMetadata(path string) map[string]string {
	if !hasExiftool() {
		logging.DebugLog("exiftool not on PATH, skipping metadata for %s", path)
		return nil
	}

	et, err := exiftool.NewExiftool()
	if err != nil {
		logging.LogWarning("exiftool startup failed: %v", err)
		return nil
	}
	defer et.Close()

	metas := et.ExtractMetadata(path)
	if len(metas) == 0 {
		return nil
	}
	if metas[0].Err != nil {
		logging.LogWarning("exiftool failed on %s: %v", path, metas[0].Err)
		return nil
	}

	fields := make(map[string]string, len(metas[0].Fields))
	for k, v := range metas[0].Fields {
		fields[k] = fmt.Sprintf("%v", v)
	}
	return fields
}
