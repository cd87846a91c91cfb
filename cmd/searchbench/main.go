package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"chess-search/board"
	"chess-search/engine"
	"chess-search/eval"
)

func main() {
	depthFlag := flag.Int("depth", 8, "search depth in plies")
	repeatFlag := flag.Int("repeat", 1, "number of searches to run")
	fenFlag := flag.String("fen", board.StartFEN, "FEN to search")
	threads := flag.Int("threads", 1, "search threads")
	hash := flag.Int("hash", 64, "transposition table size in MB")
	cpuProfile := flag.String("cpuprofile", "", "write CPU profile to file")
	memProfile := flag.String("memprofile", "", "write memory profile (heap) to file")
	level := flag.String("log-level", "info", "log level")
	uciInfo := flag.Bool("uci-info", false, "also print UCI info lines to stdout")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	lvl, err := zerolog.ParseLevel(*level)
	if err != nil {
		log.Fatal().Err(err).Str("level", *level).Msg("invalid log level")
	}
	zerolog.SetGlobalLevel(lvl)

	if *depthFlag <= 0 {
		log.Fatal().Int("depth", *depthFlag).Msg("depth must be positive")
	}

	root, err := board.ParseFEN(*fenFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("could not parse FEN")
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create CPU profile")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("could not start CPU profile")
		}
		defer func() {
			pprof.StopCPUProfile()
			f.Close()
		}()
	}

	var reporter engine.Reporter = engine.LogReporter{Logger: log.Logger}
	if *uciInfo {
		reporter = engine.MultiReporter{reporter, engine.NewUCIReporter(os.Stdout)}
	}
	coord := engine.NewCoordinator(engine.Config{Threads: *threads, HashMB: *hash}, eval.New(), reporter)
	log.Info().Str("fen", root.FEN()).Int("depth", *depthFlag).Int("repeat", *repeatFlag).
		Interface("config", coord.Config()).Msg("searchbench")

	var totalNodes uint64
	startAll := time.Now()
	for i := 0; i < *repeatFlag; i++ {
		// every run starts from an empty table
		coord.NewGame()

		iterStart := time.Now()
		res, err := coord.Search(context.Background(), root, engine.SearchParams{MaxDepth: *depthFlag})
		if err != nil {
			log.Fatal().Err(err).Msg("search failed")
		}
		totalNodes += res.Nodes
		log.Info().
			Int("run", i+1).
			Stringer("bestmove", res.Move).
			Str("score", engine.ScoreString(res.Score)).
			Uint64("nodes", res.Nodes).
			Int("hashfull", coord.Table().Hashfull()).
			Dur("time", time.Since(iterStart)).
			Msg("run complete")
	}
	elapsed := time.Since(startAll)
	log.Info().
		Uint64("nodes", totalNodes).
		Dur("time", elapsed).
		Float64("nps", float64(totalNodes)/elapsed.Seconds()).
		Object("cuts", coord.Statistics()).
		Msg("total")

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create memory profile")
		}
		defer f.Close()

		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal().Err(err).Msg("could not write memory profile")
		}
	}
}
