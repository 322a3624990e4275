// Command warpinfo prints the render configuration of the elastic-audio
// quality presets.
//
// Usage:
//
//	warpinfo [flags]
//
// Examples:
//
//	warpinfo
//	warpinfo -rate 48000
package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/cwbudde/algo-warp/elastic"
)

func main() {
	rate := flag.Float64("rate", 44100, "sample rate in Hz used for latency figures")
	flag.Parse()

	if *rate <= 0 {
		fmt.Fprintln(os.Stderr, "warpinfo: -rate must be > 0")
		os.Exit(2)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tFFT\tOVERLAP\tHOP\tBINS\tWINDOW (ms)\tHOP (ms)")

	for _, q := range []elastic.Quality{
		elastic.QualityPreview,
		elastic.QualityBalanced,
		elastic.QualityRender,
	} {
		p := elastic.QualityProfile(q)
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%.2f\t%.2f\n",
			q, p.FFTSize, p.OverlapFactor, p.AnalysisHop, p.FFTSize/2+1,
			float64(p.FFTSize)/(*rate)*1000,
			float64(p.AnalysisHop)/(*rate)*1000)
	}

	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "warpinfo: %v\n", err)
		os.Exit(1)
	}
}
