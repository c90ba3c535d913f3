package lifecycle

// DefaultRootAct is the act emitted when a new issue run starts.
const DefaultRootAct = "implement"

// defaultDocument is the built-in issue lifecycle. A user-supplied document
// replaces it wholesale; there is no per-node merging.
const defaultDocument = `
states:
  Started: inProgress
  Resumed: inProgress
  BUILDING: inProgress
  IMPLEMENTED: inReview
  PR_CREATED: inReview
  MAX_TURNS: inProgress
  QUESTION: waiting
  NEEDS_CLARIFICATION: waiting
  REPLIED: inProgress
  REVIEWING: inReview
  APPROVED: inReview
  CHANGES_REQUESTED: inReview
  REVIEW_DISMISSED: inReview
  REVISED: inReview
  MERGED: readyForDeploy
  DEPLOYING: deploy
  DEPLOY_REQUESTED: deploy
  DEPLOY_FINISHED: deploy
  DEPLOYED: deploy
  RELEASING: done
  CHANGELOG_PUBLISHED: done
  RELEASED: done
  Shipped: done
  Released: done
  MaxRetries: blocked
  ImplementationFailed: blocked
  RevisionFailed: blocked
  MergeFailed: blocked
  Failed: blocked
  Aborted: aborted

Build:
  label: Build
  executor: null
  results:
    created:
      outcome: BUILDING
      on: Build

Review:
  label: Review
  executor: null
  results:
    created:
      outcome: REVIEWING
      on: Review

Deploy:
  label: Deploy
  executor: null
  results:
    created:
      outcome: DEPLOYING
      on: Deploy

Release:
  label: Release
  executor: null
  results:
    created:
      outcome: RELEASING
      on: Release

implement:
  label: Implement issue
  executor: implement
  parent: Build
  results:
    success:
      - outcome: IMPLEMENTED
        on: Build
      - outcome: PR_CREATED
        next: review
    ask_user:
      - outcome: QUESTION
        on: Build
      - outcome: NEEDS_CLARIFICATION
        next: await_reply
    max_turns:
      outcome: MAX_TURNS
      on: Build
      next: implement
    error:
      outcome: ImplementationFailed

await_reply:
  label: Await user reply
  executor: await_reply
  parent: Build
  results:
    replied:
      outcome: REPLIED
      next: implement
    abort:
      outcome: Aborted
    error:
      outcome: Failed

review:
  label: Await pull request review
  executor: review
  parent: Review
  results:
    approved:
      - outcome: APPROVED
        on: Review
        next: merge
    changes_requested:
      outcome: CHANGES_REQUESTED
      next: revise
    dismissed:
      outcome: REVIEW_DISMISSED
      on: Review
      next: review
    error:
      outcome: Failed

revise:
  label: Revise pull request
  executor: revise
  parent: Review
  results:
    success:
      - outcome: REVISED
        on: Review
      - outcome: PR_CREATED
        next: review
    max_retries:
      outcome: MaxRetries
    error:
      outcome: RevisionFailed

merge:
  label: Merge pull requests
  executor: merge
  parent: Review
  results:
    success:
      outcome: MERGED
      next: await_deploy
    shipped:
      outcome: Shipped
    error:
      outcome: MergeFailed

await_deploy:
  label: Await deploy gate
  executor: await_deploy
  parent: Deploy
  results:
    ready:
      outcome: DEPLOYING
      on: Deploy
      next: run_deploy
    abort:
      outcome: Aborted
    error:
      outcome: Failed

run_deploy:
  label: Run deploy batch
  executor: run_deploy
  parent: Deploy
  results:
    success:
      - outcome: DEPLOY_FINISHED
        on: Deploy
      - outcome: DEPLOYED
        next: release
    error:
      outcome: Failed

release:
  label: Publish release
  executor: release
  parent: Release
  results:
    success:
      - outcome: CHANGELOG_PUBLISHED
        on: Release
      - outcome: RELEASED
        next: reflect
    error:
      outcome: Failed

reflect:
  label: Reflect into memory
  executor: reflect
  parent: Release
  results:
    done:
      outcome: Released
`

// DefaultGraph compiles the built-in lifecycle. It panics on failure: the
// built-in document is part of the binary and covered by tests.
func DefaultGraph() *Graph {
	g, err := Compile([]byte(defaultDocument), DefaultRootAct)
	if err != nil {
		panic(err)
	}
	return g
}
