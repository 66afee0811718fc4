// Command xtract processes a takeout archive from the local filesystem,
// bypassing the archive provider. Useful for archives delivered out of
// band or for reprocessing a download kept on disk.
//
// Usage:
//
//	xtract -studyid testcase -dt 03/28/2019-UTC-11:07:00 -path /home/luke/takeout.zip
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/consentlab/takeout-agent/internal/agent"
	"github.com/consentlab/takeout-agent/internal/config"
	"github.com/consentlab/takeout-agent/internal/flagx"
)

// consentDTLayout matches the consent timestamp accepted on the command
// line, e.g. "03/28/2019-UTC-11:07:00".
const consentDTLayout = "01/02/2006-MST-15:04:05"

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	args := flagx.FilterArgs(os.Args[1:], []string{"-studyid", "-dt", "-path", "-force"})

	fs := flag.NewFlagSet("xtract", flag.ExitOnError)
	studyID := fs.String("studyid", "", "participant's study id")
	dt := fs.String("dt", "", "consent datetime, e.g. 03/28/2019-UTC-11:07:00")
	path := fs.String("path", "", "path to the takeout archive")
	force := fs.Bool("force", false, "overwrite artifacts that already exist at the destination")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("%v", err)
	}

	if *studyID == "" || *path == "" {
		fs.Usage()
		os.Exit(2)
	}

	consentDT := time.Now().UTC()
	if *dt != "" {
		parsed, err := time.Parse(consentDTLayout, *dt)
		if err != nil {
			log.Fatalf("invalid -dt value %q: %v", *dt, err)
		}
		consentDT = parsed
	}

	app, err := agent.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer app.Close()

	if err := app.RunLocal(ctx, *studyID, consentDT, *path, *force); err != nil {
		log.Fatalf("%v", err)
	}
}
