// Command wfdctl feeds an RTSP byte stream (a TCP connection or a
// file) through the streaming decoder and prints decoded messages and
// interleaved-data frames. When a channel carries H.264 or AAC, access
// units are additionally depacketized and dumped to disk, optionally
// smoothed through a Pacer first.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/chenbd/go-wfd/pkg/media"
	"github.com/chenbd/go-wfd/pkg/rtsp"
	"github.com/chenbd/go-wfd/pkg/wfdlog"
)

// h264ClockRate is the RTP clock rate conventionally used for H.264
// video (RFC 6184 §8.2.1); it has no relation to AACClockRate and is
// only needed when -pace asks the video channel to run through a Pacer too.
const h264ClockRate = 90000

func main() {
	fs := flag.NewFlagSet("wfdctl", flag.ExitOnError)
	logFlags := wfdlog.RegisterFlags(fs)

	addr := fs.String("addr", "", "TCP address of an RTSP peer to dial (host:port)")
	file := fs.String("file", "", "Path to a file of raw RTSP bytes to decode instead of dialing")
	dumpChannel := fs.Int("h264-channel", -1, "Interleaved channel number to depacketize as H.264 (-1 disables)")
	dumpPath := fs.String("dump", "", "File to append depacketized H.264 access units to")
	aacChannel := fs.Int("aac-channel", -1, "Interleaved channel number to depacketize as AAC (-1 disables)")
	aacDumpPath := fs.String("aac-dump", "", "File to append depacketized AAC access units to")
	pace := fs.Bool("pace", false, "Smooth depacketized output on the pacer instead of emitting it as soon as each access unit completes")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Decodes an RTSP/interleaved-data byte stream from a socket or file.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		wfdlog.PrintUsageExamples()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing flags: %v\n", err)
		os.Exit(1)
	}

	logConfig, err := logFlags.ToConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error configuring logger: %v\n", err)
		os.Exit(1)
	}
	log, err := wfdlog.New(logConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()
	wfdlog.SetDefault(log)

	var src io.Reader
	switch {
	case *file != "":
		f, err := os.Open(*file)
		if err != nil {
			log.Error("failed to open input file", "path", *file, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		src = f
	case *addr != "":
		conn, err := net.Dial("tcp", *addr)
		if err != nil {
			log.Error("failed to dial RTSP peer", "addr", *addr, "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		src = conn
	default:
		fs.Usage()
		os.Exit(1)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	openDump := func(flagName, path string) *os.File {
		if path == "" {
			return nil
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Error("failed to open dump file", "flag", flagName, "path", path, "error", err)
			os.Exit(1)
		}
		return f
	}

	var pacers []*media.Pacer
	newPacer := func(clockRate uint32, write func([]byte, uint32) error) *media.Pacer {
		p := media.NewPacer(runCtx, clockRate, log.Logger)
		p.SetWriter(write)
		p.Start()
		pacers = append(pacers, p)
		return p
	}
	defer func() {
		for _, p := range pacers {
			p.Stop()
		}
	}()

	var depacketizer *media.H264Depacketizer
	if *dumpChannel >= 0 {
		dumpFile := openDump("-dump", *dumpPath)
		if dumpFile != nil {
			defer dumpFile.Close()
		}
		writeH264 := func(accessUnit []byte, timestamp uint32) error {
			if dumpFile != nil {
				if _, err := dumpFile.Write(accessUnit); err != nil {
					return err
				}
			}
			return nil
		}

		depacketizer = media.NewH264Depacketizer(media.WithH264Logger(log.Logger))
		if *pace {
			p := newPacer(h264ClockRate, writeH264)
			depacketizer.OnFrame = func(accessUnit []byte, keyframe bool, timestamp uint32) {
				log.DebugMedia("access unit", "bytes", len(accessUnit), "keyframe", keyframe)
				if err := p.Enqueue(media.PacedFrame{Timestamp: timestamp, Payload: accessUnit, Keyframe: keyframe}); err != nil {
					log.Error("failed to enqueue access unit", "error", err)
				}
			}
		} else {
			depacketizer.OnFrame = func(accessUnit []byte, keyframe bool, timestamp uint32) {
				log.DebugMedia("access unit", "bytes", len(accessUnit), "keyframe", keyframe)
				if err := writeH264(accessUnit, timestamp); err != nil {
					log.Error("failed to write access unit", "error", err)
				}
			}
		}
	}

	var aacDepacketizer *media.AACDepacketizer
	if *aacChannel >= 0 {
		dumpFile := openDump("-aac-dump", *aacDumpPath)
		if dumpFile != nil {
			defer dumpFile.Close()
		}
		writeAAC := func(accessUnit []byte, timestamp uint32) error {
			if dumpFile != nil {
				if _, err := dumpFile.Write(accessUnit); err != nil {
					return err
				}
			}
			return nil
		}

		aacDepacketizer = media.NewAACDepacketizer(media.WithAACLogger(log.Logger))
		if *pace {
			p := newPacer(media.AACClockRate, writeAAC)
			aacDepacketizer.OnFrame = func(accessUnit []byte, timestamp uint32) {
				log.DebugMedia("aac access unit", "bytes", len(accessUnit))
				if err := p.Enqueue(media.PacedFrame{Timestamp: timestamp, Payload: accessUnit}); err != nil {
					log.Error("failed to enqueue aac access unit", "error", err)
				}
			}
		} else {
			aacDepacketizer.OnFrame = func(accessUnit []byte, timestamp uint32) {
				log.DebugMedia("aac access unit", "bytes", len(accessUnit))
				if err := writeAAC(accessUnit, timestamp); err != nil {
					log.Error("failed to write aac access unit", "error", err)
				}
			}
		}
	}

	decoder := rtsp.NewDecoder(
		rtsp.WithLogger(log.Logger),
		rtsp.WithEventHandler(func(ev rtsp.Event) error {
			switch ev.Kind {
			case rtsp.EventMessage:
				m := ev.Message
				log.Info("rtsp message", "kind", m.Kind, "id_line", m.IDLine, "has_entity", m.HasEntity)
			case rtsp.EventData:
				log.DebugRTSP("interleaved data", "channel", ev.Data.Channel, "bytes", len(ev.Data.Value))
				if depacketizer != nil && int(ev.Data.Channel) == *dumpChannel {
					if err := depacketizer.Feed(ev.Data.Value); err != nil {
						log.Error("depacketize failed", "error", err)
					}
				}
				if aacDepacketizer != nil && int(ev.Data.Channel) == *aacChannel {
					if err := aacDepacketizer.Feed(ev.Data.Value); err != nil {
						log.Error("aac depacketize failed", "error", err)
					}
				}
			}
			return nil
		}),
	)

	buf := make([]byte, 4096)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if feedErr := decoder.Feed(buf[:n]); feedErr != nil {
				log.Error("decode failed", "error", feedErr)
				os.Exit(1)
			}
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			log.Error("read failed", "error", err)
			os.Exit(1)
		}
	}
}
