// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bbnote/goulink"
	"github.com/mattn/go-colorable"
	log "github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

func main() {
	log.SetFormatter(&prefixed.TextFormatter{
		FullTimestamp: true,
	})
	log.SetOutput(colorable.NewColorableStdout())

	flagSpeed := flag.Int("speed", 150, "requested TCK frequency in kHz")
	flagSlow := flag.Bool("slow", false, "prefer the firmware's SLOW_ command variants")
	flagVerbose := flag.Bool("verbose", false, "enable trace-level USB wire logging")
	flag.Parse()

	if *flagVerbose {
		log.SetLevel(goulink.MaxLogLevel)
	}

	log.Info("starting goulink tool...")

	if _, err := goulink.Khz(uint32(*flagSpeed)); err != nil {
		log.Fatal(err)
	}

	driver, err := goulink.Init(goulink.Config{
		PreferSlowCommands: *flagSlow,
		BulkTimeout:        5000 * time.Millisecond,
	})
	if err != nil {
		log.Fatal(err)
	}

	log.Info("adapter ready")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	if err := driver.ExecuteQueue(context.Background()); err != nil {
		log.Error(err)
	}
	driver.Quit()
}
