// Package storage writes downloaded media to disk.
//
// The storage package handles:
//   - Creating the output directory
//   - Naming files post_NNN_img[_MM].jpg and post_NNN_video[_MM].mp4
//   - Resolving name collisions with a numeric suffix
//   - Atomic writes through a temporary file and rename
//   - Clearing cache files left behind by earlier runs
//
// Usage:
//
//	manager, err := storage.NewManager("downloads/someuser")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	saved, err := manager.Save(body, media.KindImage, 3, 1)
//	if err != nil {
//	    log.Printf("Failed to save image: %v", err)
//	}
//	fmt.Println(saved.Name) // post_003_img.jpg
package storage
