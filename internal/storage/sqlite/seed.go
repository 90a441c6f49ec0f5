package sqlite

import (
	"github.com/fallcrate/milestone-web/internal/models"
)

// DefaultCatalog is the built-in fallcrate achievement catalog, used to
// provision a fresh database. Slice order is grid order (10 per row).
func DefaultCatalog(gameID string) []models.CatalogEntry {
	entries := []models.CatalogEntry{
		{ID: "first-upload", Title: "First Upload", Description: "Upload your first file"},
		{ID: "folder-maker", Title: "Folder Maker", Description: "Create your first folder"},
		{ID: "deep-nester", Title: "Deep Nester", Description: "Create a folder five levels deep"},
		{ID: "bulk-mover", Title: "Bulk Mover", Description: "Move ten files in one drag"},
		{ID: "renamer", Title: "Renamer", Description: "Rename a file or folder"},
		{ID: "duplicator", Title: "Duplicator", Description: "Duplicate a file"},
		{ID: "downloader", Title: "Downloader", Description: "Download a file back out"},
		{ID: "space-saver", Title: "Space Saver", Description: "Delete a file you no longer need"},
		{ID: "trash-panda", Title: "Trash Panda", Description: "Restore a file from the trash"},
		{ID: "spring-clean", Title: "Spring Clean", Description: "Empty the trash completely"},
		{ID: "image-fan", Title: "Image Fan", Description: "Upload ten images"},
		{ID: "big-hauler", Title: "Big Hauler", Description: "Upload a file larger than 50MB"},
		{ID: "night-shift", Title: "Night Shift", Description: "Upload a file after midnight"},
		{ID: "speed-run", Title: "Speed Run", Description: "Upload five files within one minute"},
		{ID: "archivist", Title: "Archivist", Description: "Store one hundred files"},
		{ID: "minimalist", Title: "Minimalist", Description: "Get your drive down to a single file"},
		{ID: "tidy-roots", Title: "Tidy Roots", Description: "Keep your root folder to five items"},
		{ID: "explorer", Title: "Explorer", Description: "Open every folder in your drive"},
		{ID: "keyboard-pilot", Title: "Keyboard Pilot", Description: "Use a keyboard shortcut"},
		{ID: "regular", Title: "Regular", Description: "Come back seven days in a row"},
	}

	for i := range entries {
		entries[i].GameID = gameID
	}
	return entries
}
