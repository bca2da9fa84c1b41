package appfs

import "embed"

// FS holds the SQL migrations, applied with goose, and the email templates.
//
//go:embed migrations/*.sql templates/email/*
var FS embed.FS

// EmailTemplatesDir is the directory of the email templates inside FS.
const EmailTemplatesDir = "templates/email"
