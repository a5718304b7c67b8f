package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dearfriend/dearfriend-go/internal/model"
)

// runAction dispatches the feed/post/moderation subcommands. Toggle commands
// load the post first so the toggle works against the last known state, the
// same way the screens do.
func runAction(ctx context.Context, a *app, cmd string, args []string) {
	switch cmd {

	case "feed":
		fs := flag.NewFlagSet("feed", flag.ExitOnError)
		category := fs.String("category", "", "PERSONAL|RELATIONSHIP|CAREER (empty = all)")
		cursor := fs.String("cursor", "", "page cursor")
		_ = fs.Parse(args)

		var cur *string
		if *cursor != "" {
			cur = cursor
		}
		page, err := a.feed.Load(ctx, model.Category(*category), cur)
		if err != nil {
			fail(err)
		}
		printJSON(page)

	case "post":
		fs := flag.NewFlagSet("post", flag.ExitOnError)
		id := fs.String("id", "", "post id (uuid)")
		_ = fs.Parse(args)
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}
		detail, err := a.feed.LoadPost(ctx, *id)
		if err != nil {
			fail(err)
		}
		printJSON(detail)

	case "ask":
		fs := flag.NewFlagSet("ask", flag.ExitOnError)
		category := fs.String("category", string(model.CategoryPersonal), "post category")
		body := fs.String("body", "", "post body")
		_ = fs.Parse(args)
		if *body == "" {
			fmt.Fprintln(os.Stderr, "need -body")
			os.Exit(1)
		}
		post, err := a.feed.CreatePost(ctx, model.Category(*category), *body)
		if err != nil {
			fail(err)
		}
		printJSON(post)

	case "reply":
		fs := flag.NewFlagSet("reply", flag.ExitOnError)
		post := fs.String("post", "", "post id (uuid)")
		body := fs.String("body", "", "reply body")
		_ = fs.Parse(args)
		if *post == "" || *body == "" {
			fmt.Fprintln(os.Stderr, "need -post and -body")
			os.Exit(1)
		}
		reply, err := a.feed.CreateReply(ctx, *post, *body)
		if err != nil {
			fail(err)
		}
		printJSON(reply)

	case "like":
		fs := flag.NewFlagSet("like", flag.ExitOnError)
		post := fs.String("post", "", "post id (uuid)")
		_ = fs.Parse(args)
		if *post == "" {
			fmt.Fprintln(os.Stderr, "need -post")
			os.Exit(1)
		}
		if _, err := a.feed.LoadPost(ctx, *post); err != nil {
			fail(err)
		}
		liked, err := a.social.ToggleLikePost(ctx, *post)
		if err != nil {
			fail(err)
		}
		if liked {
			fmt.Println("liked")
		} else {
			fmt.Println("unliked")
		}

	case "like-reply":
		fs := flag.NewFlagSet("like-reply", flag.ExitOnError)
		post := fs.String("post", "", "post id (uuid)")
		reply := fs.String("reply", "", "reply id (uuid)")
		_ = fs.Parse(args)
		if *post == "" || *reply == "" {
			fmt.Fprintln(os.Stderr, "need -post and -reply")
			os.Exit(1)
		}
		if _, err := a.feed.LoadPost(ctx, *post); err != nil {
			fail(err)
		}
		liked, err := a.social.ToggleLikeReply(ctx, *post, *reply)
		if err != nil {
			fail(err)
		}
		if liked {
			fmt.Println("liked")
		} else {
			fmt.Println("unliked")
		}

	case "pin":
		fs := flag.NewFlagSet("pin", flag.ExitOnError)
		post := fs.String("post", "", "post id (uuid)")
		reply := fs.String("reply", "", "reply id (uuid)")
		_ = fs.Parse(args)
		if *post == "" || *reply == "" {
			fmt.Fprintln(os.Stderr, "need -post and -reply")
			os.Exit(1)
		}
		if err := a.social.PinReply(ctx, *post, *reply); err != nil {
			fail(err)
		}
		fmt.Println("pinned")

	case "unpin":
		fs := flag.NewFlagSet("unpin", flag.ExitOnError)
		post := fs.String("post", "", "post id (uuid)")
		_ = fs.Parse(args)
		if *post == "" {
			fmt.Fprintln(os.Stderr, "need -post")
			os.Exit(1)
		}
		if err := a.social.PinReply(ctx, *post, ""); err != nil {
			fail(err)
		}
		fmt.Println("unpinned")

	case "report":
		fs := flag.NewFlagSet("report", flag.ExitOnError)
		post := fs.String("post", "", "post id (uuid)")
		reason := fs.String("reason", "", "report reason")
		_ = fs.Parse(args)
		if *post == "" || *reason == "" {
			fmt.Fprintln(os.Stderr, "need -post and -reason")
			os.Exit(1)
		}
		if err := a.social.ReportPost(ctx, *post, *reason); err != nil {
			fail(err)
		}
		fmt.Println("reported")

	case "report-reply":
		fs := flag.NewFlagSet("report-reply", flag.ExitOnError)
		reply := fs.String("reply", "", "reply id (uuid)")
		reason := fs.String("reason", "", "report reason")
		_ = fs.Parse(args)
		if *reply == "" || *reason == "" {
			fmt.Fprintln(os.Stderr, "need -reply and -reason")
			os.Exit(1)
		}
		if err := a.social.ReportReply(ctx, *reply, *reason); err != nil {
			fail(err)
		}
		fmt.Println("reported")

	case "block":
		fs := flag.NewFlagSet("block", flag.ExitOnError)
		user := fs.String("user", "", "user id (uuid)")
		_ = fs.Parse(args)
		if *user == "" {
			fmt.Fprintln(os.Stderr, "need -user")
			os.Exit(1)
		}
		if err := a.social.BlockUser(ctx, *user); err != nil {
			fail(err)
		}
		fmt.Println("blocked")

	case "unblock":
		fs := flag.NewFlagSet("unblock", flag.ExitOnError)
		user := fs.String("user", "", "user id (uuid)")
		_ = fs.Parse(args)
		if *user == "" {
			fmt.Fprintln(os.Stderr, "need -user")
			os.Exit(1)
		}
		if err := a.social.UnblockUser(ctx, *user); err != nil {
			fail(err)
		}
		fmt.Println("unblocked")

	case "blocked":
		users, err := a.social.ListBlocked(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(users)

	case "rm":
		fs := flag.NewFlagSet("rm", flag.ExitOnError)
		post := fs.String("post", "", "post id (uuid)")
		_ = fs.Parse(args)
		if *post == "" {
			fmt.Fprintln(os.Stderr, "need -post")
			os.Exit(1)
		}
		if err := a.social.DeletePost(ctx, *post); err != nil {
			fail(err)
		}
		fmt.Println("deleted")

	default:
		usage()
	}
}
