package main

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/gurtprime/merlinCLI/internal"
	"github.com/gurtprime/merlinCLI/internal/service"
	"github.com/spf13/cobra"
)

var (
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "merlin",
	Short: "Merlin - 加密货币交易信号分析工具",
	Long:  ``,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "执行一次信号流水线并输出分析报告",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := runPipeline(cmd)
		if err != nil {
			return err
		}
		fmt.Print(renderResult(result))
		return nil
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "执行一次信号流水线并输出原始JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := runPipeline(cmd)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动仪表盘服务",
	RunE: func(cmd *cobra.Command, args []string) error {
		return internal.RunServer(configFile)
	},
}

func runPipeline(cmd *cobra.Command) (*service.RunResult, error) {
	components, _, logger, err := internal.Bootstrap(configFile)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = logger.Sync()
	}()

	return components.Pipeline.Run(cmd.Context())
}

// renderResult 终端文本报告
func renderResult(r *service.RunResult) string {
	var b strings.Builder
	line := strings.Repeat("=", 56)

	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "  %s / %s / %s", r.Meta.Exchange, r.Meta.Symbol, r.Meta.Timeframe)
	if r.Meta.Synthetic {
		fmt.Fprint(&b, "  [synthetic data]")
	}
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "  %s | %d rows\n", r.Meta.GeneratedAt.Format("2006-01-02 15:04:05 MST"), r.Meta.Rows)
	fmt.Fprintln(&b, line)

	fmt.Fprintln(&b, "\n  Price")
	fmt.Fprintf(&b, "    current %.2f | open %.2f | high %.2f | low %.2f | change %.3f%%\n",
		r.PriceHistory.Current, r.PriceHistory.Open, r.PriceHistory.High, r.PriceHistory.Low, r.PriceHistory.ChangePct)
	fmt.Fprintf(&b, "    price trend %s | volume trend %s\n", r.PriceHistory.Trend, r.PriceHistory.VolumeTrend)

	fmt.Fprintln(&b, "\n  Technicals")
	fmt.Fprintf(&b, "    ema_trend %.4f | sma_trend %.4f | rsi %.2f\n",
		r.Technicals.EMATrend, r.Technicals.SMATrend, r.Technicals.RSI)
	fmt.Fprintf(&b, "    macd %.4f | signal %.4f | bb_position %.4f\n",
		r.Technicals.MACD, r.Technicals.MACDSignal, r.Technicals.BBPosition)
	fmt.Fprintf(&b, "    volume_ratio %.4f | volatility %.4f\n",
		r.Technicals.VolumeRatio, r.Technicals.Volatility)

	fmt.Fprintln(&b, "\n  Sentiment")
	fmt.Fprintf(&b, "    compound %.4f | pos %.4f | neg %.4f | neu %.4f | buzz %d\n",
		r.Sentiment.Compound, r.Sentiment.Positive, r.Sentiment.Negative, r.Sentiment.Neutral, r.Sentiment.Buzz)

	fmt.Fprintln(&b, "\n  Regime")
	fmt.Fprintf(&b, "    composite %.3f | trend %.3f | momentum %.3f | sentiment %.3f\n",
		r.Regime.CompositeScore, r.Regime.TrendScore, r.Regime.Momentum, r.Regime.Sentiment)
	fmt.Fprintf(&b, "    macd_bias %.3f | volume_pressure %.3f\n",
		r.Regime.MACDBias, r.Regime.VolumePressure)
	fmt.Fprintf(&b, "    recommendation: %s\n", r.Regime.Recommendation)

	if r.Insight != nil {
		fmt.Fprintf(&b, "\n  Insight (%s / %s)\n", r.Insight.Backend, r.Insight.Model)
		fmt.Fprintf(&b, "    recommendation: %s\n", r.Insight.Recommendation)
		fmt.Fprintf(&b, "    %s\n", r.Insight.Rationale)
		for _, risk := range r.Insight.Risks {
			fmt.Fprintf(&b, "    - %s\n", risk)
		}
		if len(r.Insight.KeyLevels) > 0 {
			fmt.Fprintln(&b, "    levels:")
			for _, level := range r.Insight.KeyLevels {
				fmt.Fprintf(&b, "      %s\n", level)
			}
		}
	}

	fmt.Fprintln(&b, "\n"+line)
	return b.String()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "配置文件路径")
	rootCmd.AddCommand(analyzeCmd, dumpCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
