package service

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/google/uuid"

	"chronicle-server/internal/models"
)

// exportTemplate renders a scene's history as a self-contained HTML
// transcript, the downloadable chronicle export.
var exportTemplate = template.Must(template.New("chronicle").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Chronicle of {{.PlayerName}}</title>
<style>
  body { font-family: Georgia, serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; background: #14141c; color: #e8e4d8; }
  h1 { font-size: 1.5rem; border-bottom: 1px solid #555; padding-bottom: .5rem; }
  .meta { color: #9a9484; font-size: .85rem; margin-bottom: 2rem; }
  .entry { margin: 1.25rem 0; white-space: pre-wrap; }
  .entry.user { color: #8fb7d4; font-style: italic; }
  .entry.user::before { content: "\25B8  "; }
  .game-over { text-align: center; color: #c97b6a; margin-top: 2rem; letter-spacing: .2em; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="meta">{{.Setting}} &mdash; {{.Mode}}{{if .Round}} &mdash; round {{.Round}}{{end}}</div>
{{range .Entries}}<div class="entry {{.Role}}">{{.Content}}</div>
{{end}}{{if .GameOver}}<div class="game-over">THE CHRONICLE HAS ENDED</div>{{end}}
</body>
</html>
`))

type exportData struct {
	Title      string
	PlayerName string
	Setting    string
	Mode       string
	Round      int
	GameOver   bool
	Entries    []models.ChatMessage
}

// ExportChronicle renders the full history log as a standalone HTML page.
func (s *chronicleService) ExportChronicle(ctx context.Context, sceneID uuid.UUID) (string, error) {
	scene, err := s.store.GetByID(ctx, sceneID)
	if err != nil {
		return "", err
	}

	title := fmt.Sprintf("Chronicle of %s", scene.PlayerName)
	if scene.OpponentName != "" {
		title = fmt.Sprintf("Chronicle of %s vs %s", scene.PlayerName, scene.OpponentName)
	}

	var b strings.Builder
	err = exportTemplate.Execute(&b, exportData{
		Title:      title,
		PlayerName: scene.PlayerName,
		Setting:    scene.Setting,
		Mode:       string(scene.Mode),
		Round:      scene.Round,
		GameOver:   scene.GameOver,
		Entries:    scene.History,
	})
	if err != nil {
		return "", fmt.Errorf("rendering chronicle export for scene %s: %w", sceneID, err)
	}
	return b.String(), nil
}
