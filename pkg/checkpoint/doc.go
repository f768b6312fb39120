// Package checkpoint saves the partial aggregate of a profile crawl so an
// interrupted crawl can resume from its next cursor.
//
// A checkpoint holds the target, the pages merged so far, the last consumed
// cursor and the partial aggregate itself. Files are written atomically
// (temporary file, sync, rename) into a directory chosen by the caller or
// the platform data directory:
//   - Linux: $XDG_DATA_HOME/igcrawler/checkpoints or ~/.local/share/igcrawler/checkpoints
//   - macOS: ~/Library/Application Support/igcrawler/checkpoints
//   - Windows: %APPDATA%/igcrawler/checkpoints
package checkpoint
