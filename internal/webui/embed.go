package webui

import "embed"

// staticFS embeds the single page UI
//
//go:embed static/*
var staticFS embed.FS
