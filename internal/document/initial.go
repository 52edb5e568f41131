package document

// Default returns the built-in starter document used when no persisted data
// exists or the persisted bytes are unreadable.
func Default() *Document {
	return &Document{
		Categories: []Category{
			{
				ID:   "essentials",
				Name: "Essentials",
				Sort: 1,
				Software: []SoftwareEntry{
					{
						ID:           "7zip",
						Name:         "7-Zip",
						Website:      "https://www.7-zip.org",
						Description:  "Free and open-source file archiver with a high compression ratio.",
						DownloadURLs: []string{"https://www.7-zip.org/"},
						BlogURLs:     []string{},
						Sort:         1,
					},
					{
						ID:           "everything",
						Name:         "Everything",
						Website:      "https://www.voidtools.com",
						Description:  "Instant filename search for Windows.",
						DownloadURLs: []string{"https://www.voidtools.com/"},
						BlogURLs:     []string{},
						Sort:         2,
					},
				},
			},
			{
				ID:   "devtools",
				Name: "Development",
				Sort: 2,
				Software: []SoftwareEntry{
					{
						ID:           "vscode",
						Name:         "Visual Studio Code",
						Website:      "https://code.visualstudio.com",
						Description:  "Lightweight source code editor with a large extension ecosystem.",
						DownloadURLs: []string{"https://code.visualstudio.com/Download"},
						BlogURLs:     []string{},
						Sort:         1,
					},
				},
			},
		},
	}
}
