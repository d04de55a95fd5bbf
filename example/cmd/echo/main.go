// Command echo runs a fulfillment worker for a trivial echo activity. It is
// the reference wiring for a production worker: SWF task queue, S3 payload
// offload, and the full event protocol.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsswf "github.com/aws/aws-sdk-go-v2/service/swf"
	"github.com/google/uuid"
	"goa.design/clue/log"

	blobs3 "github.com/workfleet/fulfill/blob/s3"
	queueswf "github.com/workfleet/fulfill/queue/swf"
	"github.com/workfleet/fulfill/schema"
	"github.com/workfleet/fulfill/worker"
	"github.com/workfleet/fulfill/zipper"
)

func main() {
	var (
		regionF   = flag.String("region", "us-east-1", "AWS region")
		domainF   = flag.String("domain", "fulfillment", "SWF domain to poll")
		nameF     = flag.String("activity", "echo", "Activity name")
		versionF  = flag.String("version", "1.0", "Activity version")
		bucketF   = flag.String("bucket", "", "S3 bucket for oversized payloads")
		prefixF   = flag.String("prefix", "retain_30_180/zipped-ff", "S3 key prefix for oversized payloads")
		identityF = flag.String("identity", "", "Worker identity reported to SWF")
		dbgF      = flag.Bool("debug", false, "Enable debug logs")
	)
	flag.Parse()

	// Setup logger.
	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}

	// The task queue long-polls for up to a minute; the HTTP client must
	// outwait it (50s connect, 70s response header).
	httpClient := awshttp.NewBuildableClient().
		WithDialerOptions(func(d *net.Dialer) {
			d.Timeout = 50 * time.Second
		}).
		WithTransportOptions(func(tr *http.Transport) {
			tr.ResponseHeaderTimeout = 70 * time.Second
		})
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(*regionF),
		config.WithHTTPClient(httpClient),
	)
	if err != nil {
		log.Fatalf(ctx, err, "load AWS config")
	}

	identity := *identityF
	if identity == "" {
		host, _ := os.Hostname()
		identity = host
	}
	taskQueue, err := queueswf.New(queueswf.Options{
		Client:   awsswf.NewFromConfig(cfg),
		Domain:   *domainF,
		TaskList: *nameF + *versionF,
		Identity: identity,
	})
	if err != nil {
		log.Fatalf(ctx, err, "build task queue")
	}

	codecOpts := zipper.Options{Bucket: *bucketF, Prefix: *prefixF}
	if *bucketF != "" {
		store, err := blobs3.New(blobs3.Options{Client: s3.NewFromConfig(cfg)})
		if err != nil {
			log.Fatalf(ctx, err, "build blob store")
		}
		codecOpts.Store = store
	}

	w, err := worker.New(worker.Options{
		ActivityName:    *nameF,
		ActivityVersion: *versionF,
		Description:     "echoes its parsed parameters back as the result",
		Parameters: map[string]*schema.Parameter{
			"stuff":   schema.Json("anything to echo"),
			"repeat":  schema.Int("echo the value this many times", schema.WithDefault(1), schema.WithMinimum(1)),
			"comment": schema.String("ignored free-form text", schema.Optional()),
		},
		Result:   schema.JsonResult("the echoed values"),
		Handler:  echo,
		Queue:    taskQueue,
		Zipper:   zipper.New(codecOpts),
		Instance: uuid.NewString(),
	})
	if err != nil {
		log.Fatalf(ctx, err, "build worker")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := w.RunLoop(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf(ctx, err, "worker loop")
	}
	log.Printf(ctx, "exited")
}

func echo(_ context.Context, req *worker.Request) (any, []string, error) {
	repeat := int(req.Args["repeat"].(int64))
	out := make([]any, repeat)
	for i := range out {
		out[i] = req.Args["stuff"]
	}
	return out, []string{"echoed input"}, nil
}
