package app

const (
	Name            = "clipbridge"
	SourceURL       = "https://github.com/ergolyam/clipbridge"
	ConfigFilename  = "config.json"
	DBFilename      = "app.db"
	LogFilename     = "app.log"
	RecentClipsLoad = 20
)
